package services

// Field maps one output column to the query-path expression that fills it.
type Field struct {
	Name string
	Path string
}

// PropertyFields is the listing projection table. Column order in every
// output follows this slice.
var PropertyFields = []Field{
	{"id", "id"},
	{"available", "status.published"},
	{"archived", "status.archived"},
	{"phone", "contactInfo.telephoneNumbers.localNumber"},
	{"bedrooms", "bedrooms"},
	{"bathrooms", "bathrooms"},
	{"type", "transactionType"},
	{"property_type", "propertySubType"},
	{"tags", "tags"},
	{"description", "text.description"},
	{"title", "text.pageTitle"},
	{"subtitle", "text.propertyPhrase"},
	{"price", "prices.primaryPrice"},
	{"price_sqft", "prices.pricePerSqFt"},
	{"address", "address"},
	{"latitude", "location.latitude"},
	{"longitude", "location.longitude"},
	{"features", "keyFeatures"},
	{"history", "listingHistory"},
	{"photos", "images[*].{url: url, caption: caption}"},
	{"floorplans", "floorplans[*].{url: url, caption: caption}"},
	{"agency", "customer.{id: branchId, branch: branchName, company: companyName, address: displayAddress, " +
		"commercial: commercial, buildToRent: buildToRent, isNew: isNewHomeDeveloper}"},
	{"industryAffiliations", "industryAffiliations[*].name"},
	{"nearest_airports", "nearestAirports[*].{name: name, distance: distance}"},
	{"nearest_stations", "nearestStations[*].{name: name, distance: distance}"},
	{"sizings", "sizings[*].{unit: unit, min: minimumSize, max: maximumSize}"},
	{"brochures", "brochures"},
}

// FieldNames returns the column names of a table in order.
func FieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
