package parsers

import "github.com/username/sellersync/backend/src/models"

// Canonical logical field names. Callers decide whether a missing field is
// fatal for their report type; the parser only maps what it can.
const (
	FieldOrderID     = "orderId"
	FieldSKU         = "sku"
	FieldASIN        = "asin"
	FieldFNSKU       = "fnsku"
	FieldAmount      = "amount"
	FieldCurrency    = "currency"
	FieldDate        = "date"
	FieldQuantity    = "quantity"
	FieldDescription = "description"
	FieldType        = "type"
	FieldReason      = "reason"
	FieldStatus      = "status"
	FieldSettlementID = "settlementId"
)

// reportFamily binds the expected header tokens used for header-row
// detection to the synonym table used for column mapping. Header spellings
// vary between marketplaces and export versions, so every canonical field
// carries an ordered list of known spellings; the first match wins.
type reportFamily struct {
	headerTokens []string
	synonyms     map[string][]string
}

var families = map[models.ReportType]reportFamily{
	models.ReportTypeSettlements: {
		headerTokens: []string{
			"settlementid", "transactiontype", "orderid", "amounttype",
			"amountdescription", "amount", "currency", "posteddate", "sku",
		},
		synonyms: map[string][]string{
			FieldSettlementID: {"settlementid"},
			FieldOrderID:      {"orderid", "amazonorderid", "merchantorderid"},
			FieldSKU:          {"sku", "sellersku", "merchantsku"},
			FieldAmount:       {"amount", "amounttotal", "total"},
			FieldCurrency:     {"currency", "currencycode"},
			FieldDate:         {"posteddate", "posteddatetime", "date"},
			FieldQuantity:     {"quantitypurchased", "quantity", "qty"},
			FieldDescription:  {"amountdescription", "description"},
			FieldType:         {"amounttype", "transactiontype", "type"},
		},
	},
	models.ReportTypeOrders: {
		headerTokens: []string{
			"amazonorderid", "purchasedate", "orderstatus", "sku", "asin",
			"itemprice", "quantity", "currency", "salechannel", "shipcity",
		},
		synonyms: map[string][]string{
			FieldOrderID:  {"amazonorderid", "orderid"},
			FieldSKU:      {"sku", "sellersku"},
			FieldASIN:     {"asin", "productid"},
			FieldAmount:   {"itemprice", "price", "amount"},
			FieldCurrency: {"currency", "currencycode"},
			FieldDate:     {"purchasedate", "orderdate", "date"},
			FieldQuantity: {"quantity", "quantityordered", "qty"},
			FieldStatus:   {"orderstatus", "itemstatus", "status"},
		},
	},
	models.ReportTypeInventory: {
		headerTokens: []string{
			"sku", "fnsku", "asin", "productname", "condition", "yourprice",
			"afnfulfillablequantity", "afntotalquantity", "mfnlistingexists",
		},
		synonyms: map[string][]string{
			FieldSKU:         {"sku", "sellersku"},
			FieldFNSKU:       {"fnsku"},
			FieldASIN:        {"asin"},
			FieldAmount:      {"yourprice", "price"},
			FieldCurrency:    {"currency", "currencycode"},
			FieldQuantity:    {"afnfulfillablequantity", "afntotalquantity", "quantityavailable", "quantity"},
			FieldDescription: {"productname", "itemname", "title"},
			FieldStatus:      {"condition", "itemcondition"},
		},
	},
	models.ReportTypeReturns: {
		headerTokens: []string{
			"returndate", "orderid", "sku", "asin", "fnsku", "reason",
			"quantity", "status", "detaileddisposition", "customercomments",
		},
		synonyms: map[string][]string{
			FieldOrderID:  {"orderid", "amazonorderid"},
			FieldSKU:      {"sku", "sellersku"},
			FieldASIN:     {"asin"},
			FieldFNSKU:    {"fnsku"},
			FieldDate:     {"returndate", "date"},
			FieldQuantity: {"quantity", "qty"},
			FieldReason:   {"reason", "returnreason"},
			FieldStatus:   {"status", "detaileddisposition"},
		},
	},
}
