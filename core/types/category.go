package types

// Category enumerates the fixed item categories shared by listings and item
// requests. The numeric values are part of the external protocol and must not
// be reordered.
type Category uint8

const (
	CategoryClothing Category = iota
	CategoryHouseGoods
	CategoryElectronics
	CategorySportsGoods
	CategoryHobbies
)

// Valid reports whether the category value is within the supported range.
func (c Category) Valid() bool {
	return c <= CategoryHobbies
}

// String returns the canonical protocol name of the category.
func (c Category) String() string {
	switch c {
	case CategoryClothing:
		return "clothing"
	case CategoryHouseGoods:
		return "housegoods"
	case CategoryElectronics:
		return "electronics"
	case CategorySportsGoods:
		return "sportsgoods"
	case CategoryHobbies:
		return "hobbies"
	default:
		return "unknown"
	}
}
