package shared

// Permissions checked by the RBAC middleware.
const (
	PermOrderView   = "sales.order.view"
	PermOrderCreate = "sales.order.create"
	PermOrderEdit   = "sales.order.edit"
	PermOrderDelete = "sales.order.delete"

	PermCustomerView = "sales.customer.view"
	PermCustomerEdit = "sales.customer.edit"

	PermPaymentRecord = "finance.payment.record"

	PermTripView          = "delivery.trip.view"
	PermTripManage        = "delivery.trip.manage"
	PermDeliveryConfirm   = "delivery.order.confirm"
	PermDeliveryReconcile = "delivery.reconcile"

	PermMasterDataView = "masterdata.view"
	PermMasterDataEdit = "masterdata.edit"

	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermJobsView = "jobs.view"

	PermAuditView = "audit.view"
)

var roleGrants = map[Role][]string{
	RoleSales: {
		PermOrderView, PermOrderCreate, PermOrderEdit, PermOrderDelete,
		PermCustomerView, PermCustomerEdit,
		PermPaymentRecord,
		PermTripView,
		PermMasterDataView,
	},
	RoleOperator: {
		PermOrderView,
		PermCustomerView,
		PermTripView, PermTripManage, PermDeliveryConfirm, PermDeliveryReconcile,
		PermMasterDataView,
	},
	RoleFinance: {
		PermOrderView,
		PermCustomerView,
		PermPaymentRecord,
		PermMasterDataView,
		PermAuditView,
	},
}

// AllPermissions lists every permission known to the system.
func AllPermissions() []string {
	return []string{
		PermOrderView, PermOrderCreate, PermOrderEdit, PermOrderDelete,
		PermCustomerView, PermCustomerEdit,
		PermPaymentRecord,
		PermTripView, PermTripManage, PermDeliveryConfirm, PermDeliveryReconcile,
		PermMasterDataView, PermMasterDataEdit,
		PermUsersView, PermUsersEdit,
		PermJobsView,
		PermAuditView,
	}
}

// RolePermissions returns the permissions granted to role. Admins hold every permission.
func RolePermissions(role Role) []string {
	if role == RoleAdmin {
		return AllPermissions()
	}
	grants := roleGrants[role]
	out := make([]string, len(grants))
	copy(out, grants)
	return out
}
