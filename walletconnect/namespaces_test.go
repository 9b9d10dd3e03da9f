package walletconnect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algoline/wallet-core/account"
	"github.com/algoline/wallet-core/params"
)

func TestBuildApprovedNamespaces(t *testing.T) {
	proposal := &Proposal{
		RequiredNamespaces: map[string]ProposedNamespace{
			"algorand": {
				Chains:  []string{params.MainnetChainID, params.TestnetChainID},
				Methods: []string{"algo_signTxn", "algo_signData"},
				Events:  []string{"accountsChanged", "chainChanged"},
			},
		},
	}
	addresses := []account.Address{"ADDR1", "ADDR2"}

	t.Run("grants_intersection", func(t *testing.T) {
		namespaces := BuildApprovedNamespaces(proposal, addresses, []string{params.MainnetChainID})
		require.Len(t, namespaces, 1)

		ns := namespaces["algorand"]
		// Only the supported method and event survive.
		require.Equal(t, []string{"algo_signTxn"}, ns.Methods)
		require.Equal(t, []string{"accountsChanged"}, ns.Events)
		// Accounts are bound only to the granted chain.
		require.Equal(t, []string{
			params.MainnetChainID + ":ADDR1",
			params.MainnetChainID + ":ADDR2",
		}, ns.Accounts)
	})

	t.Run("no_supported_chain_yields_nothing", func(t *testing.T) {
		namespaces := BuildApprovedNamespaces(proposal, addresses, []string{"eip155:1"})
		require.Empty(t, namespaces)
	})

	t.Run("chain_in_namespace_key", func(t *testing.T) {
		legacy := &Proposal{
			RequiredNamespaces: map[string]ProposedNamespace{
				params.MainnetChainID: {Methods: []string{"algo_signTxn"}},
			},
		}
		namespaces := BuildApprovedNamespaces(legacy, addresses, []string{params.MainnetChainID})
		require.Len(t, namespaces, 1)
		require.Equal(t, []string{params.MainnetChainID + ":ADDR1", params.MainnetChainID + ":ADDR2"},
			namespaces[params.MainnetChainID].Accounts)
	})
}

func TestSessionReferencesAddress(t *testing.T) {
	session := testSession("topic-1", Version2)
	require.True(t, session.ReferencesAddress("ADDR1"))
	require.False(t, session.ReferencesAddress("ADDR2"))
	require.False(t, session.ReferencesAddress(""))
}
