package randvar

import "golang.org/x/exp/rand"

// Stream returns the random stream for the particle at idx, derived from the
// root seed. The derivation depends only on (root, idx), never on scheduling
// order, so parallel runs reproduce serial ones.
func Stream(root uint64, idx int) *rand.Rand {
	return rand.New(rand.NewSource(mix(root, uint64(idx))))
}

// SubSeed derives a child seed from a root seed and an index. Stream(root,
// idx) and Stream(SubSeed(root, idx), 0) are distinct streams; use SubSeed
// to partition seed space across cycles or components.
func SubSeed(root uint64, idx int) uint64 {
	return mix(root, uint64(idx))
}

// mix is the splitmix64 finalizer over the root seed and stream index.
func mix(root, idx uint64) uint64 {
	z := root + (idx+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
