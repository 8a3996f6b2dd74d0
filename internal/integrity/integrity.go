// Package integrity provides deterministic naming and tamper-evident hashing
// for match artifacts. All functions are pure and deterministic.
package integrity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
)

// Round-log hashes carry a version prefix so the encoding can evolve.
const roundLogV1Prefix = "v1:"

// ArtifactName returns the round-log filename for a task:
// "vs_<16 hex chars>_<taskID>.parquet". The digest covers both agent
// identities and the task id, so concurrent workers never collide and reruns
// of the same plan produce the same names.
func ArtifactName(agent1, agent2 string, taskID int) string {
	sum := blake2b.Sum256([]byte(agent1 + "_" + agent2 + "_" + strconv.Itoa(taskID)))
	return fmt.Sprintf("vs_%s_%d.parquet", hex.EncodeToString(sum[:8]), taskID)
}

// RoundLogHash returns a versioned SHA-256 digest over the moves and scores
// of every round, in order. Each field is length-prefixed.
func RoundLogHash(records []model.RoundRecord) string {
	h := sha256.New()
	writeField := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s))) //nolint:gosec // fields are short identifiers
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	for _, r := range records {
		writeField(strconv.Itoa(r.Round))
		writeField(r.Agent1Name)
		writeField(r.Agent1Move)
		writeField(strconv.FormatInt(r.Agent1Score, 10))
		writeField(strconv.FormatInt(r.Agent1TotalScore, 10))
		writeField(r.Agent2Name)
		writeField(r.Agent2Move)
		writeField(strconv.FormatInt(r.Agent2Score, 10))
		writeField(strconv.FormatInt(r.Agent2TotalScore, 10))
	}
	return roundLogV1Prefix + hex.EncodeToString(h.Sum(nil))
}

// VerifyRoundLog checks whether a stored hash matches the recomputed hash.
func VerifyRoundLog(stored string, records []model.RoundRecord) bool {
	return stored == RoundLogHash(records)
}

// Fingerprint returns the Merkle root over a batch's round-log hashes. The
// input order does not matter.
func Fingerprint(hashes []string) string {
	sorted := slices.Clone(hashes)
	slices.Sort(sorted)
	return BuildMerkleRoot(sorted)
}

// hashPair produces SHA-256(0x01 || a || b) as a hex string.
// The 0x01 prefix separates internal nodes from leaves (RFC 6962).
func hashPair(a, b string) string {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write([]byte(a))
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))
}

// BuildMerkleRoot constructs a Merkle tree from leaf hashes and returns the root.
// Leaves must be sorted by the caller for determinism.
// If leaves is empty, returns an empty string.
// If leaves has one element, the root is that element.
// Odd-length levels hash the last node with itself.
func BuildMerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	level := slices.Clone(leaves)
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}
