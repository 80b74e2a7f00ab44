package state

var (
	accountPrefix         = []byte("account/")
	listingRecordPrefix   = []byte("market/listing/")
	listingCounterKey     = []byte("market/listing/counter")
	sellerListingsPrefix  = []byte("market/listing/by-seller/")
	orderRecordPrefix     = []byte("market/order/")
	orderCounterKey       = []byte("market/order/counter")
	buyerOrdersPrefix     = []byte("market/order/by-buyer/")
	charityRecordPrefix   = []byte("charity/record/")
	charityListKey        = []byte("charity/list")
	goalRecordPrefix      = []byte("charity/goal/")
	goalCounterKey        = []byte("charity/goal/counter")
	charityGoalsPrefix    = []byte("charity/goal/by-charity/")
	requestRecordPrefix   = []byte("charity/request/")
	requestCounterKey     = []byte("charity/request/counter")
	charityRequestsPrefix = []byte("charity/request/by-charity/")
	adminSetKey           = []byte("admin/set")
	primaryAdminKey       = []byte("admin/primary")
)
