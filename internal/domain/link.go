package domain

// Relation names one typed association table in the resource link graph.
// The set is closed: each value maps to exactly one join table.
type Relation string

const (
	RelationTenantSalesChannel  Relation = "tenant_sales_channel"
	RelationTenantProduct       Relation = "tenant_product"
	RelationProductSalesChannel Relation = "product_sales_channel"
)

func (r Relation) Valid() bool {
	switch r {
	case RelationTenantSalesChannel, RelationTenantProduct, RelationProductSalesChannel:
		return true
	}
	return false
}

// Link is one (subject, object) row of a relation. Tenant ids are stored in
// their canonical UUID string form.
type Link struct {
	Relation  Relation `json:"relation"`
	SubjectID string   `json:"subject_id"`
	ObjectID  string   `json:"object_id"`
}
