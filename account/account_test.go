package account

import (
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/require"
)

func makeAddress(fill byte) Address {
	var addr types.Address
	for i := range addr {
		addr[i] = fill
	}
	return Address(addr.String())
}

func TestAddressValidate(t *testing.T) {
	require.NoError(t, makeAddress(1).Validate())
	require.True(t, makeAddress(1).IsValid())

	for _, bad := range []Address{"", "xyz", "not an address at all"} {
		err := bad.Validate()
		require.ErrorIs(t, err, ErrInvalidAddress, "address %q", bad)
		require.False(t, bad.IsValid())
	}
}

func TestIsRekeyed(t *testing.T) {
	addr := makeAddress(1)

	tests := []struct {
		name string
		acc  Account
		want bool
	}{
		{"no_auth_address", Account{Address: addr}, false},
		{"auth_address_is_self", Account{Address: addr, AuthAddress: addr}, false},
		{"rekeyed_away", Account{Address: addr, AuthAddress: makeAddress(2)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.acc.IsRekeyed())
		})
	}
}

func TestMinimumBalance(t *testing.T) {
	t.Run("reported_by_node_wins", func(t *testing.T) {
		acc := Account{MinBalance: 350_000, Assets: []AssetHolding{{AssetID: 1}}}
		require.Equal(t, uint64(350_000), acc.MinimumBalance())
	})
	t.Run("derived_from_holdings", func(t *testing.T) {
		acc := Account{Assets: []AssetHolding{{AssetID: 1}, {AssetID: 2}}}
		require.Equal(t, uint64(300_000), acc.MinimumBalance())
	})
	t.Run("base_only", func(t *testing.T) {
		acc := Account{}
		require.Equal(t, uint64(100_000), acc.MinimumBalance())
	})
}

func TestCanSpendFullBalance(t *testing.T) {
	addr := makeAddress(1)

	require.True(t, (&Account{Address: addr}).CanSpendFullBalance())
	require.False(t, (&Account{Address: addr, Assets: []AssetHolding{{AssetID: 1}}}).CanSpendFullBalance())
	require.False(t, (&Account{Address: addr, AuthAddress: makeAddress(2)}).CanSpendFullBalance())
}

func TestHolding(t *testing.T) {
	acc := Account{Assets: []AssetHolding{
		{AssetID: 31566704, Amount: 150, Decimals: 6},
	}}

	holding, ok := acc.Holding(31566704)
	require.True(t, ok)
	require.Equal(t, uint64(150), holding.Amount)
	require.True(t, acc.HasAsset(31566704))

	_, ok = acc.Holding(999)
	require.False(t, ok)
	require.False(t, acc.HasAsset(999))
}
