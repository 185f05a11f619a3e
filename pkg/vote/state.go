package vote

import (
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// VoteState layout versions, as the bincode enum tag of VoteStateVersions.
const (
	VersionV0_23_5  uint32 = 0
	VersionV1_14_11 uint32 = 1
	VersionCurrent  uint32 = 2
)

const (
	maxLockoutHistory    = 31
	maxEpochCreditsHist  = 64
	maxAuthorizedVoters  = 64
	priorVotersCapacity  = 32
	priorVoterEntrySize  = 32 + 8 + 8
	priorVotersTotalSize = priorVotersCapacity*priorVoterEntrySize + 8 + 1
)

// Lockout is one entry of the vote tower. Latency is only recorded on chain by
// the current layout and is zero otherwise.
type Lockout struct {
	Slot              uint64 `json:"slot"`
	ConfirmationCount uint32 `json:"confirmation_count"`
	Latency           uint8  `json:"latency"`
}

type AuthorizedVoter struct {
	Epoch  uint64           `json:"epoch"`
	Pubkey solana.PublicKey `json:"pubkey"`
}

// EpochCredits is the on-chain credit counter for one epoch.
type EpochCredits struct {
	Epoch       uint64 `json:"epoch"`
	Credits     uint64 `json:"credits"`
	PrevCredits uint64 `json:"prev_credits"`
}

// Earned is the credits accrued during the epoch.
func (e EpochCredits) Earned() uint64 {
	if e.Credits < e.PrevCredits {
		return 0
	}
	return e.Credits - e.PrevCredits
}

type BlockTimestamp struct {
	Slot      uint64 `json:"slot"`
	Timestamp int64  `json:"timestamp"`
}

// State is the decoded vote account.
type State struct {
	Version              uint32            `json:"version"`
	NodePubkey           solana.PublicKey  `json:"node_pubkey"`
	AuthorizedWithdrawer solana.PublicKey  `json:"authorized_withdrawer"`
	Commission           uint8             `json:"commission"`
	Votes                []Lockout         `json:"votes"`
	RootSlot             *uint64           `json:"root_slot,omitempty"`
	AuthorizedVoters     []AuthorizedVoter `json:"authorized_voters"`
	EpochCredits         []EpochCredits    `json:"epoch_credits"`
	LastTimestamp        BlockTimestamp    `json:"last_timestamp"`
}

// ParseState decodes the bincode VoteStateVersions encoding. Trailing padding
// after the last field is ignored.
func ParseState(data []byte) (*State, error) {
	dec := bin.NewBinDecoder(data)
	st := &State{}

	version, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, decodeErr("version tag", err)
	}
	st.Version = version
	switch version {
	case VersionV1_14_11, VersionCurrent:
	case VersionV0_23_5:
		return nil, decodeErr(fmt.Sprintf("unsupported vote state version %d", version), nil)
	default:
		return nil, decodeErr(fmt.Sprintf("unknown vote state version %d", version), nil)
	}

	if st.NodePubkey, err = readPubkey(dec); err != nil {
		return nil, decodeErr("node pubkey", err)
	}
	if st.AuthorizedWithdrawer, err = readPubkey(dec); err != nil {
		return nil, decodeErr("authorized withdrawer", err)
	}
	if st.Commission, err = dec.ReadUint8(); err != nil {
		return nil, decodeErr("commission", err)
	}

	n, err := readLen(dec, maxLockoutHistory)
	if err != nil {
		return nil, decodeErr("votes length", err)
	}
	st.Votes = make([]Lockout, 0, n)
	for i := 0; i < n; i++ {
		var lo Lockout
		if version == VersionCurrent {
			if lo.Latency, err = dec.ReadUint8(); err != nil {
				return nil, decodeErr("vote latency", err)
			}
		}
		if lo.Slot, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return nil, decodeErr("vote slot", err)
		}
		if lo.ConfirmationCount, err = dec.ReadUint32(binary.LittleEndian); err != nil {
			return nil, decodeErr("confirmation count", err)
		}
		st.Votes = append(st.Votes, lo)
	}

	hasRoot, err := dec.ReadUint8()
	if err != nil {
		return nil, decodeErr("root slot tag", err)
	}
	switch hasRoot {
	case 0:
	case 1:
		root, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return nil, decodeErr("root slot", err)
		}
		st.RootSlot = &root
	default:
		return nil, decodeErr(fmt.Sprintf("bad root slot tag %d", hasRoot), nil)
	}

	if n, err = readLen(dec, maxAuthorizedVoters); err != nil {
		return nil, decodeErr("authorized voters length", err)
	}
	for i := 0; i < n; i++ {
		var av AuthorizedVoter
		if av.Epoch, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return nil, decodeErr("authorized voter epoch", err)
		}
		if av.Pubkey, err = readPubkey(dec); err != nil {
			return nil, decodeErr("authorized voter", err)
		}
		st.AuthorizedVoters = append(st.AuthorizedVoters, av)
	}

	if err := dec.SkipBytes(priorVotersTotalSize); err != nil {
		return nil, decodeErr("prior voters", err)
	}

	if n, err = readLen(dec, maxEpochCreditsHist); err != nil {
		return nil, decodeErr("epoch credits length", err)
	}
	for i := 0; i < n; i++ {
		var ec EpochCredits
		if ec.Epoch, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return nil, decodeErr("epoch credits", err)
		}
		if ec.Credits, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return nil, decodeErr("epoch credits", err)
		}
		if ec.PrevCredits, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return nil, decodeErr("epoch credits", err)
		}
		st.EpochCredits = append(st.EpochCredits, ec)
	}

	if st.LastTimestamp.Slot, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, decodeErr("last timestamp", err)
	}
	if st.LastTimestamp.Timestamp, err = dec.ReadInt64(binary.LittleEndian); err != nil {
		return nil, decodeErr("last timestamp", err)
	}

	return st, nil
}

// CurrentEpochCredits returns the newest epoch credits entry, if any.
func (s *State) CurrentEpochCredits() (EpochCredits, bool) {
	if len(s.EpochCredits) == 0 {
		return EpochCredits{}, false
	}
	return s.EpochCredits[len(s.EpochCredits)-1], true
}

func readPubkey(dec *bin.Decoder) (solana.PublicKey, error) {
	raw, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(raw), nil
}

func readLen(dec *bin.Decoder, limit int) (int, error) {
	n, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return 0, err
	}
	if n > uint64(limit) {
		return 0, fmt.Errorf("length %d exceeds %d", n, limit)
	}
	return int(n), nil
}
