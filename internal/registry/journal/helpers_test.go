package journal

import "trustreg/contracts/registry"

func registryHeight(h uint64) registry.Height { return registry.Height(h) }

func registryEntity(id string) registry.EntityID { return registry.EntityID(id) }

// chain seals entries in order so they form a valid journal.
func chain(entries ...Entry) []Entry {
	var prev Digest
	for i := range entries {
		entries[i].Seal(prev)
		prev = entries[i].Hash
	}
	return entries
}
