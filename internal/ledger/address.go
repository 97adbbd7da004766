package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID anchors every derived address when no program id is
// configured.
var DefaultProgramID = solana.PublicKeyFromBytes(sha256Sum("launchpad.program"))

func sha256Sum(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

// ProgramAddress derives a program address from seeds.
func ProgramAddress(programID solana.PublicKey, seeds ...[]byte) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive program address: %w", err)
	}
	return addr, nil
}

// ComponentAddress derives the address of a singleton component such as the
// registry or the router.
func ComponentAddress(programID solana.PublicKey, name string) (solana.PublicKey, error) {
	return ProgramAddress(programID, []byte(name))
}

// PairAddress derives the pair address for an unordered (a, b) combination.
func PairAddress(programID, a, b solana.PublicKey) (solana.PublicKey, error) {
	lo, hi := SortAddresses(a, b)
	return ProgramAddress(programID, []byte("pair"), lo[:], hi[:])
}

// TokenAddress derives the address of the nonce-th token launched by creator.
func TokenAddress(programID, creator solana.PublicKey, nonce uint64) (solana.PublicKey, error) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], nonce)
	return ProgramAddress(programID, []byte("token"), creator[:], n[:])
}

// AccountAddress derives a named account owned by base, used for simulated
// users and vaults.
func AccountAddress(base solana.PublicKey, name string) (solana.PublicKey, error) {
	addr, err := solana.CreateWithSeed(base, name, solana.SystemProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive account %q: %w", name, err)
	}
	return addr, nil
}

// SortAddresses returns a and b in byte order.
func SortAddresses(a, b solana.PublicKey) (solana.PublicKey, solana.PublicKey) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}
