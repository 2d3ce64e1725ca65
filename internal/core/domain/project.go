package domain

// ProjectID identifies a tracked project (a chain or an L2 product).
type ProjectID string

// ProviderType selects which updater family syncs a project.
type ProviderType string

const (
	ProviderRPC      ProviderType = "rpc"
	ProviderZksync   ProviderType = "zksync"
	ProviderLoopring ProviderType = "loopring"
	ProviderStarkex  ProviderType = "starkex"
)

// Known project IDs
const (
	ProjectZksync   ProjectID = "zksync"
	ProjectLoopring ProjectID = "loopring"
)

// Valid reports whether t names a supported provider family.
func (t ProviderType) Valid() bool {
	switch t {
	case ProviderRPC, ProviderZksync, ProviderLoopring, ProviderStarkex:
		return true
	}
	return false
}
