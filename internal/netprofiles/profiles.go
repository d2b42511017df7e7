package netprofiles

import "sort"

// NetworkProfile defines the REST endpoint and chain id of a known network
type NetworkProfile struct {
	NodeURL string `json:"node_url"`
	ChainID uint8  `json:"chain_id"`
}

// Profiles contains the predefined network configurations
var Profiles = map[string]NetworkProfile{
	"local": {
		NodeURL: "http://127.0.0.1:8080/v1",
		ChainID: 4,
	},
	// devnet is reset regularly and its chain id changes with every reset
	"devnet": {
		NodeURL: "https://fullnode.devnet.aptoslabs.com/v1",
		ChainID: 0,
	},
	"testnet": {
		NodeURL: "https://fullnode.testnet.aptoslabs.com/v1",
		ChainID: 2,
	},
	"mainnet": {
		NodeURL: "https://fullnode.mainnet.aptoslabs.com/v1",
		ChainID: 1,
	},
}

// GetProfile returns the network profile for the given name
func GetProfile(name string) (NetworkProfile, bool) {
	profile, exists := Profiles[name]
	return profile, exists
}

// GetAvailableNetworks returns the sorted list of available network names
func GetAvailableNetworks() []string {
	networks := make([]string, 0, len(Profiles))
	for name := range Profiles {
		networks = append(networks, name)
	}
	sort.Strings(networks)
	return networks
}

// IsValidNetwork checks if the given network name is valid
func IsValidNetwork(name string) bool {
	_, exists := Profiles[name]
	return exists
}

// HasFixedChainID reports whether the profile pins a chain id. Profiles
// without one take it from the node's ledger info.
func (p NetworkProfile) HasFixedChainID() bool {
	return p.ChainID != 0
}
