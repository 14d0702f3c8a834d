package model

// RoleFunction is the categorical role assigned by the classifier.
type RoleFunction string

const (
	RoleEngineering     RoleFunction = "engineering"
	RoleData            RoleFunction = "data"
	RoleProduct         RoleFunction = "product"
	RoleDesign          RoleFunction = "design"
	RoleSales           RoleFunction = "sales"
	RoleMarketing       RoleFunction = "marketing"
	RoleConsulting      RoleFunction = "consulting"
	RoleCustomerSuccess RoleFunction = "customer_success"
	RoleOperations      RoleFunction = "operations"
	RoleFinance         RoleFunction = "finance"
	RolePeople          RoleFunction = "people"
	RoleOther           RoleFunction = "other"
)

// IsResolved returns true for any role other than the default.
func (r RoleFunction) IsResolved() bool {
	return r != "" && r != RoleOther
}
