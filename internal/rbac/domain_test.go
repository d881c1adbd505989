package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllow(t *testing.T) {
	require.True(t, Allow(RoleAdmin, ActionCompanyDelete))
	require.False(t, Allow(RoleSales, ActionCompanyDelete))
	require.False(t, Allow(RoleProcurement, ActionOrderClose))

	require.True(t, Allow(RoleSales, ActionOpportunityTransition))
	require.True(t, Allow(RoleProcurement, ActionGoodsReceiptCreate))
	require.False(t, Allow(RoleSales, ActionGoodsReceiptCreate))

	require.True(t, Allow(RoleFinance, ActionPaymentApply))
	require.False(t, Allow(RoleFinance, ActionPurchaseOrderManage))

	require.False(t, Allow(RoleSales, Action("unknown.action")))
}
