package proofs

import (
	"errors"
	"strings"
	"sync"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/propshare-labs/distributor/pkg/distribution"
	"github.com/propshare-labs/distributor/pkg/merkle"
	"github.com/propshare-labs/distributor/pkg/utils"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

// ErrNotEligible is the expected outcome for a holder outside the committed
// set: no proof exists for them, so no claim can succeed.
var ErrNotEligible = errors.New("holder is not eligible for this distribution")

// Trees for the most recent distributions are kept in memory; rebuilds are
// pure functions of the stored entry set, so eviction only costs time.
const maxCachedTrees = 16

type HolderProof struct {
	DistributionId string
	Holder         string
	EligibleAmount string
	MerkleRoot     string
	Proof          []string
}

// ProofStore rebuilds the Merkle tree for a distribution from its persisted
// eligibility set and serves per-holder inclusion proofs.
type ProofStore struct {
	registry *distribution.Registry
	logger   *zap.Logger

	lock  sync.Mutex
	trees *orderedmap.OrderedMap[string, *treeData]
}

type treeData struct {
	tree    *merkle.Tree
	entries map[gethcommon.Address]string
}

func NewProofStore(registry *distribution.Registry, l *zap.Logger) *ProofStore {
	return &ProofStore{
		registry: registry,
		logger:   l,
		trees:    orderedmap.New[string, *treeData](),
	}
}

func (ps *ProofStore) getTreeForDistribution(distributionId string) (*treeData, error) {
	ps.lock.Lock()
	defer ps.lock.Unlock()

	if data, ok := ps.trees.Get(distributionId); ok {
		return data, nil
	}

	entries, err := ps.registry.ListEligibilityEntries(distributionId)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, distribution.ErrDistributionNotFound
	}

	tree, err := merkle.NewTree(entries)
	if err != nil {
		ps.logger.Sugar().Errorw("Failed to rebuild tree for distribution",
			zap.String("distributionId", distributionId),
			zap.Error(err),
		)
		return nil, err
	}

	amounts := make(map[gethcommon.Address]string, len(entries))
	for _, entry := range entries {
		amounts[entry.Holder] = entry.Amount.String()
	}

	data := &treeData{
		tree:    tree,
		entries: amounts,
	}
	ps.trees.Set(distributionId, data)
	for ps.trees.Len() > maxCachedTrees {
		oldest := ps.trees.Oldest()
		ps.trees.Delete(oldest.Key)
	}
	return data, nil
}

// GetProof returns the holder's committed amount and sibling path, or
// ErrNotEligible when the holder is absent from the committed set.
func (ps *ProofStore) GetProof(distributionId string, holder string) (*HolderProof, error) {
	data, err := ps.getTreeForDistribution(distributionId)
	if err != nil {
		return nil, err
	}

	holderAddress := gethcommon.HexToAddress(holder)
	amount, ok := data.entries[holderAddress]
	if !ok {
		return nil, ErrNotEligible
	}

	proof, err := data.tree.Proof(holderAddress)
	if err != nil {
		return nil, ErrNotEligible
	}

	return &HolderProof{
		DistributionId: distributionId,
		Holder:         strings.ToLower(holderAddress.Hex()),
		EligibleAmount: amount,
		MerkleRoot:     utils.ConvertBytesToString(data.tree.Root()),
		Proof: utils.Map(proof, func(sibling []byte, i uint64) string {
			return utils.ConvertBytesToString(sibling)
		}),
	}, nil
}

// Invalidate drops a cached tree, e.g. after a distribution is cancelled.
func (ps *ProofStore) Invalidate(distributionId string) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.trees.Delete(distributionId)
}
