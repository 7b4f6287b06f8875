package merkle

import (
	"math/big"
	"math/rand"
	"testing"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func testEntries() []Entry {
	return []Entry{
		{Holder: gethcommon.HexToAddress("0x1111111111111111111111111111111111111111"), Amount: big.NewInt(500)},
		{Holder: gethcommon.HexToAddress("0x2222222222222222222222222222222222222222"), Amount: big.NewInt(300)},
		{Holder: gethcommon.HexToAddress("0x3333333333333333333333333333333333333333"), Amount: big.NewInt(200)},
	}
}

func Test_MerkleTree(t *testing.T) {
	t.Run("Should build the same root for any permutation of entries", func(t *testing.T) {
		entries := testEntries()
		tree, err := NewTree(entries)
		assert.Nil(t, err)

		for i := 0; i < 10; i++ {
			shuffled := make([]Entry, len(entries))
			copy(shuffled, entries)
			rand.Shuffle(len(shuffled), func(a, b int) {
				shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
			})

			shuffledTree, err := NewTree(shuffled)
			assert.Nil(t, err)
			assert.Equal(t, tree.Root(), shuffledTree.Root())
		}
	})

	t.Run("Should verify every entry against its own proof", func(t *testing.T) {
		entries := testEntries()
		tree, err := NewTree(entries)
		assert.Nil(t, err)

		for _, entry := range entries {
			proof, err := tree.Proof(entry.Holder)
			assert.Nil(t, err)

			leaf := LeafHash(entry.Holder, entry.Amount)
			assert.True(t, Verify(tree.Root(), leaf, proof))
		}
	})

	t.Run("Should reject another entry's proof path", func(t *testing.T) {
		entries := testEntries()
		tree, err := NewTree(entries)
		assert.Nil(t, err)

		proofForFirst, err := tree.Proof(entries[0].Holder)
		assert.Nil(t, err)

		leafForSecond := LeafHash(entries[1].Holder, entries[1].Amount)
		assert.False(t, Verify(tree.Root(), leafForSecond, proofForFirst))
	})

	t.Run("Should reject a tampered amount", func(t *testing.T) {
		entries := testEntries()
		tree, err := NewTree(entries)
		assert.Nil(t, err)

		proof, err := tree.Proof(entries[0].Holder)
		assert.Nil(t, err)

		inflatedLeaf := LeafHash(entries[0].Holder, big.NewInt(5000))
		assert.False(t, Verify(tree.Root(), inflatedLeaf, proof))
	})

	t.Run("Should use the leaf hash as the root for a single entry", func(t *testing.T) {
		entries := testEntries()[:1]
		tree, err := NewTree(entries)
		assert.Nil(t, err)

		leaf := LeafHash(entries[0].Holder, entries[0].Amount)
		assert.Equal(t, leaf, tree.Root())

		proof, err := tree.Proof(entries[0].Holder)
		assert.Nil(t, err)
		assert.Equal(t, 0, len(proof))
		assert.True(t, Verify(tree.Root(), leaf, proof))
	})

	t.Run("Should duplicate the last node of odd layers", func(t *testing.T) {
		// 3 leaves: the third is paired with itself at the leaf layer.
		entries := testEntries()
		tree, err := NewTree(entries)
		assert.Nil(t, err)

		leafLayer := tree.layers[0]
		assert.Equal(t, 3, len(leafLayer))

		left := hashPair(leafLayer[0], leafLayer[1])
		right := hashPair(leafLayer[2], leafLayer[2])
		assert.Equal(t, hashPair(left, right), tree.Root())
	})

	t.Run("Should fail to build proofs for unknown holders", func(t *testing.T) {
		tree, err := NewTree(testEntries())
		assert.Nil(t, err)

		_, err = tree.Proof(gethcommon.HexToAddress("0x9999999999999999999999999999999999999999"))
		assert.NotNil(t, err)
	})

	t.Run("Should reject empty entry sets and duplicate holders", func(t *testing.T) {
		_, err := NewTree([]Entry{})
		assert.NotNil(t, err)

		entries := testEntries()
		entries = append(entries, entries[0])
		_, err = NewTree(entries)
		assert.NotNil(t, err)
	})

	t.Run("Should verify proofs for every entry of a large tree", func(t *testing.T) {
		entries := make([]Entry, 0, 257)
		for i := 0; i < 257; i++ {
			entries = append(entries, Entry{
				Holder: gethcommon.BigToAddress(big.NewInt(int64(i + 1))),
				Amount: big.NewInt(int64(i * 13)),
			})
		}
		tree, err := NewTree(entries)
		assert.Nil(t, err)

		for _, entry := range entries {
			proof, err := tree.Proof(entry.Holder)
			assert.Nil(t, err)
			assert.True(t, Verify(tree.Root(), LeafHash(entry.Holder, entry.Amount), proof))
		}
	})
}

func Test_ParseRoot(t *testing.T) {
	tree, err := NewTree(testEntries())
	assert.Nil(t, err)

	rootString := "0x" + gethcommon.Bytes2Hex(tree.Root())
	assert.True(t, IsValidRootString(rootString))

	parsed, err := ParseRoot(rootString)
	assert.Nil(t, err)
	assert.Equal(t, tree.Root(), parsed)

	assert.False(t, IsValidRootString("0x1234"))
	assert.False(t, IsValidRootString("not a root"))
}
