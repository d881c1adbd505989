package rbac

// Role is the coarse permission grouping assigned to a user.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleSales       Role = "SALES"
	RoleProcurement Role = "PROCUREMENT"
	RoleFinance     Role = "FINANCE"
)

// Action names a server-side mutation that must pass a capability check
// before executing. Hiding a button client-side is never enough.
type Action string

const (
	ActionCompanyManage         Action = "company.manage"
	ActionCompanyDelete         Action = "company.delete"
	ActionOpportunityManage     Action = "opportunity.manage"
	ActionOpportunityTransition Action = "opportunity.transition"
	ActionSampleManage          Action = "sample.manage"
	ActionSampleReview          Action = "sample.review"
	ActionProjectManage         Action = "project.manage"
	ActionPurchaseOrderManage   Action = "po.manage"
	ActionGoodsReceiptCreate    Action = "grn.create"
	ActionShipmentManage        Action = "shipment.manage"
	ActionOrderConvert          Action = "order.convert"
	ActionOrderClose            Action = "order.close"
	ActionPaymentApply          Action = "payment.apply"
	ActionLedgerRecord          Action = "ledger.record"
	ActionFinanceView           Action = "finance.view"
)

// capabilities maps each action to the roles allowed to invoke it. ADMIN is
// implicitly allowed everywhere and is not listed.
var capabilities = map[Action][]Role{
	ActionCompanyManage:         {RoleSales, RoleProcurement},
	ActionCompanyDelete:         {},
	ActionOpportunityManage:     {RoleSales},
	ActionOpportunityTransition: {RoleSales},
	ActionSampleManage:          {RoleProcurement},
	ActionSampleReview:          {RoleSales, RoleProcurement},
	ActionProjectManage:         {RoleProcurement},
	ActionPurchaseOrderManage:   {RoleProcurement},
	ActionGoodsReceiptCreate:    {RoleProcurement},
	ActionShipmentManage:        {RoleSales, RoleProcurement},
	ActionOrderConvert:          {RoleSales},
	ActionOrderClose:            {RoleSales},
	ActionPaymentApply:          {RoleFinance, RoleSales},
	ActionLedgerRecord:          {RoleFinance},
	ActionFinanceView:           {RoleFinance, RoleSales, RoleProcurement},
}

// Allow reports whether role may invoke action.
func Allow(role Role, action Action) bool {
	if role == RoleAdmin {
		return true
	}
	allowed, ok := capabilities[action]
	if !ok {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
