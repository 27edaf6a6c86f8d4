package constants

const (
	// VATCode is the SAT catalog code for IVA on transfer nodes.
	VATCode = "002"
	// LodgingCode is the secondary transfer code some issuers use for ISH.
	LodgingCode = "003"
	// LodgingAbbreviation is how local-tax blocks label the lodging tax.
	LodgingAbbreviation = "ISH"
)
