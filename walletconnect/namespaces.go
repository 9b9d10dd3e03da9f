package walletconnect

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set"

	"github.com/algoline/wallet-core/account"
	"github.com/algoline/wallet-core/params"
)

// BuildApprovedNamespaces intersects the proposal's requested methods and
// events with what the wallet supports, and binds the selected accounts to
// every requested chain. Chains the wallet cannot serve are dropped; a
// proposal left with no chain at all cannot be approved.
func BuildApprovedNamespaces(proposal *Proposal, addresses []account.Address, supportedChains []string) map[string]Namespace {
	supported := mapset.NewSet()
	for _, c := range supportedChains {
		supported.Add(c)
	}

	out := make(map[string]Namespace)
	for nsKey, requested := range proposal.RequiredNamespaces {
		chains := requested.Chains
		if len(chains) == 0 {
			// v1-style proposals name the chain in the namespace key.
			chains = []string{nsKey}
		}

		var grantedChains []string
		for _, chain := range chains {
			if supported.Contains(chain) {
				grantedChains = append(grantedChains, chain)
			}
		}
		if len(grantedChains) == 0 {
			continue
		}

		out[nsKey] = Namespace{
			Accounts: caip10Accounts(addresses, grantedChains),
			Methods:  intersect(requested.Methods, params.SupportedMethods),
			Events:   intersect(requested.Events, params.SupportedEvents),
		}
	}
	return out
}

func intersect(requested, supported []string) []string {
	a := mapset.NewSet()
	for _, v := range requested {
		a.Add(v)
	}
	b := mapset.NewSet()
	for _, v := range supported {
		b.Add(v)
	}

	var out []string
	for _, v := range a.Intersect(b).ToSlice() {
		out = append(out, v.(string))
	}
	sort.Strings(out)
	return out
}

func caip10Accounts(addresses []account.Address, chains []string) []string {
	accounts := make([]string, 0, len(addresses)*len(chains))
	for _, chain := range chains {
		for _, address := range addresses {
			accounts = append(accounts, chain+":"+string(address))
		}
	}
	return accounts
}

// caip10Address extracts the bare address from a CAIP-10 account string.
func caip10Address(caip10 string) string {
	parts := strings.Split(caip10, ":")
	return parts[len(parts)-1]
}
