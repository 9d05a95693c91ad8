// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/stakeledger/kv"
	"github.com/vechain/stakeledger/staker/delegation"
	"github.com/vechain/stakeledger/staker/validation"
	"github.com/vechain/stakeledger/thor"
)

const snapshotVersion = 1

var (
	ErrStoreNotEmpty    = errors.New("store already holds a ledger")
	ErrSnapshotOverflow = errors.New("snapshot totals overflow")
)

type snapshot struct {
	Version    uint
	Config     *storedConfig
	Block      uint64
	Validators []*snapshotValidator
}

type snapshotValidator struct {
	ID          thor.Address
	Delegations []*snapshotDelegation
}

type snapshotDelegation struct {
	Staker thor.Address
	Amount *uint256.Int
	Epoch  uint64
}

// Export writes the whole ledger as snappy-compressed RLP. Validators and their
// delegations keep their registration and first-delegation order.
func (s *Staker) Export(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &snapshot{
		Version: snapshotVersion,
		Config:  s.cfg.stored(),
		Block:   s.epochs.Block(),
	}
	if err := s.validationService.Iterate(func(id thor.Address, _ *validation.Validation) (bool, error) {
		sv := &snapshotValidator{ID: id}
		if err := s.delegationService.Iterate(id, func(staker thor.Address, d *delegation.Delegation) (bool, error) {
			sv.Delegations = append(sv.Delegations, &snapshotDelegation{
				Staker: staker,
				Amount: d.Amount(),
				Epoch:  d.Epoch(),
			})
			return true, nil
		}); err != nil {
			return false, err
		}
		snap.Validators = append(snap.Validators, sv)
		return true, nil
	}); err != nil {
		return err
	}

	data, err := rlp.EncodeToBytes(snap)
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	if _, err := w.Write(snappy.Encode(nil, data)); err != nil {
		return errors.Wrap(err, "write snapshot")
	}
	logger.Info("exported ledger", "validators", len(snap.Validators), "block", snap.Block)
	return nil
}

// Import restores a snapshot written by Export into an empty store and opens it.
// cacheSize is the only setting not carried by the snapshot.
func Import(store kv.Store, r io.Reader, cacheSize int) (*Staker, error) {
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.Wrap(err, "decompress snapshot")
	}
	var snap snapshot
	if err := rlp.DecodeBytes(data, &snap); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	if snap.Version != snapshotVersion {
		return nil, errors.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if snap.Config == nil || snap.Config.Unit == nil {
		return nil, errors.New("snapshot has no config")
	}

	iter := storeBucket.NewStore(store).Iterate(kv.Range{})
	nonEmpty := iter.Next()
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "inspect store")
	}
	if nonEmpty {
		return nil, ErrStoreNotEmpty
	}

	s, err := newStaker(store, Config{
		Unit:          snap.Config.Unit,
		MaxValidators: int(snap.Config.MaxValidators),
		EpochLength:   snap.Config.EpochLength,
		CacheSize:     cacheSize,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// config is committed with the contents
	if err := s.mutate(func() error {
		if err := s.storeConfig(); err != nil {
			return err
		}
		for _, sv := range snap.Validators {
			v, err := s.validationService.Add(sv.ID)
			if err != nil {
				return errors.Wrapf(err, "validator %v", sv.ID)
			}
			total := new(uint256.Int)
			for _, sd := range sv.Delegations {
				if _, err := s.delegationService.Add(sv.ID, sd.Staker, sd.Amount, sd.Epoch); err != nil {
					return errors.Wrapf(err, "delegation %v/%v", sv.ID, sd.Staker)
				}
				if _, overflow := total.AddOverflow(total, sd.Amount); overflow {
					return errors.Wrapf(ErrSnapshotOverflow, "validator %v", sv.ID)
				}
			}
			if err := s.validationService.SetTotal(sv.ID, v, total); err != nil {
				return err
			}
			if err := s.globalStatsService.ApplyChange(new(uint256.Int), total); err != nil {
				return err
			}
		}
		return s.block.Set(snap.Block)
	}); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.load(); err != nil {
		s.Close()
		return nil, err
	}
	s.updateGauges()

	logger.Info("imported ledger", "validators", len(snap.Validators), "block", snap.Block)
	return s, nil
}
