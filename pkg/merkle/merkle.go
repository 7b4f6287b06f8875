package merkle

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"strings"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
)

// Entry is one (holder, eligible amount) pair committed into a tree.
type Entry struct {
	Holder gethcommon.Address
	Amount *big.Int
}

var hasher = keccak256.New()

// LeafHash commits to a single holder's eligible amount. The amount is
// left-padded to 32 bytes so the encoding is unambiguous.
func LeafHash(holder gethcommon.Address, amount *big.Int) []byte {
	return hasher.Hash(holder.Bytes(), gethcommon.LeftPadBytes(amount.Bytes(), 32))
}

// hashPair combines two nodes. The pair is sorted before hashing so that
// combination is commutative and proof verification does not need to track
// left/right positions.
func hashPair(a, b []byte) []byte {
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	return hasher.Hash(a, b)
}

// Tree is a binary keccak256 hash tree over a set of eligibility entries.
// Leaves are sorted by hash before the layers are built, so any permutation
// of the same entry set produces the same root. Odd-length layers pair the
// last node with itself; the verifier folds proofs with the identical rule.
type Tree struct {
	layers      [][][]byte
	leafIndexes map[gethcommon.Address]int
}

func NewTree(entries []Entry) (*Tree, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("cannot build a tree with no entries")
	}

	type leaf struct {
		holder gethcommon.Address
		hash   []byte
	}
	leaves := make([]leaf, 0, len(entries))
	seen := make(map[gethcommon.Address]bool, len(entries))
	for _, entry := range entries {
		if entry.Amount == nil || entry.Amount.Sign() < 0 {
			return nil, fmt.Errorf("invalid amount for holder %s", entry.Holder.Hex())
		}
		if seen[entry.Holder] {
			return nil, fmt.Errorf("duplicate holder %s", entry.Holder.Hex())
		}
		seen[entry.Holder] = true
		leaves = append(leaves, leaf{holder: entry.Holder, hash: LeafHash(entry.Holder, entry.Amount)})
	}

	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i].hash, leaves[j].hash) < 0
	})

	leafIndexes := make(map[gethcommon.Address]int, len(leaves))
	leafLayer := make([][]byte, len(leaves))
	for i, lf := range leaves {
		leafIndexes[lf.holder] = i
		leafLayer[i] = lf.hash
	}

	layers := [][][]byte{leafLayer}
	for current := leafLayer; len(current) > 1; {
		next := make([][]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, hashPair(current[i], current[i+1]))
			} else {
				next = append(next, hashPair(current[i], current[i]))
			}
		}
		layers = append(layers, next)
		current = next
	}

	return &Tree{
		layers:      layers,
		leafIndexes: leafIndexes,
	}, nil
}

func (t *Tree) Root() []byte {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// Proof returns the sibling path from the holder's leaf up to the root. A
// holder that is not part of the committed set has no proof, which is an
// expected outcome rather than an internal failure.
func (t *Tree) Proof(holder gethcommon.Address) ([][]byte, error) {
	index, ok := t.leafIndexes[holder]
	if !ok {
		return nil, fmt.Errorf("holder %s is not part of the tree", holder.Hex())
	}

	proof := make([][]byte, 0, len(t.layers)-1)
	for _, layer := range t.layers[:len(t.layers)-1] {
		siblingIndex := index ^ 1
		if siblingIndex >= len(layer) {
			// Odd layer: the node was paired with itself.
			siblingIndex = index
		}
		proof = append(proof, layer[siblingIndex])
		index /= 2
	}
	return proof, nil
}

// FoldProof recomputes the candidate root from a leaf and a sibling path
// using the same sorted-pair rule as the builder.
func FoldProof(leaf []byte, proof [][]byte) []byte {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed
}

// Verify reports whether the leaf was part of the tree that produced root.
// A single-entry tree has an empty proof and the leaf is compared to the
// root directly.
func Verify(root []byte, leaf []byte, proof [][]byte) bool {
	return bytes.Equal(FoldProof(leaf, proof), root)
}

// ParseRoot decodes a 0x-prefixed hex root as stored on a distribution.
func ParseRoot(s string) ([]byte, error) {
	root := gethcommon.FromHex(s)
	if len(root) != hasher.HashLength() {
		return nil, fmt.Errorf("invalid root '%s': expected %d bytes", s, hasher.HashLength())
	}
	return root, nil
}

// IsValidRootString reports whether s looks like a committed root.
func IsValidRootString(s string) bool {
	if !strings.HasPrefix(s, "0x") {
		return false
	}
	_, err := ParseRoot(s)
	return err == nil
}
