// Copyright 2025 Trustless Voting System
//
// Merkle Tree Tests

package merkle

import (
	"testing"

	"github.com/jasonsutter87/tvs-core/pkg/codec"
)

func leafOf(s string) [32]byte {
	return codec.Hash256([]byte(s))
}

func TestEmptyTreeRoot(t *testing.T) {
	tree := NewTree()
	got := tree.Root()
	want := codec.Hash256([]byte("empty"))
	if got != want {
		t.Errorf("empty root mismatch: got %x, want %x", got, want)
	}
	if tree.Size() != 0 {
		t.Errorf("expected size 0, got %d", tree.Size())
	}
}

func TestAppendSingleLeaf(t *testing.T) {
	tree := NewTree()
	leaf := leafOf("vote-1")

	pos, proof, err := tree.Append(leaf)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if pos != 0 {
		t.Errorf("expected position 0, got %d", pos)
	}

	root := tree.Root()
	if root != leaf {
		t.Errorf("single-leaf root should equal the leaf: got %x, want %x", root, leaf)
	}

	ok, err := VerifyProof(leaf, proof, root)
	if err != nil || !ok {
		t.Errorf("proof verification failed: ok=%v err=%v", ok, err)
	}
}

func TestAppendTwoLeaves(t *testing.T) {
	tree := NewTree()
	leaf1 := leafOf("vote-1")
	leaf2 := leafOf("vote-2")

	_, _, err := tree.Append(leaf1)
	if err != nil {
		t.Fatalf("append 1 failed: %v", err)
	}
	pos2, proof2, err := tree.Append(leaf2)
	if err != nil {
		t.Fatalf("append 2 failed: %v", err)
	}
	if pos2 != 1 {
		t.Errorf("expected position 1, got %d", pos2)
	}

	expectedRoot := codec.Hash256(leaf1[:], leaf2[:])
	root := tree.Root()
	if root != expectedRoot {
		t.Errorf("two-leaf root mismatch: got %x, want %x", root, expectedRoot)
	}

	ok, err := VerifyProof(leaf2, proof2, root)
	if err != nil || !ok {
		t.Errorf("proof 2 verification failed: ok=%v err=%v", ok, err)
	}
}

func TestAppendOddNumberOfLeaves(t *testing.T) {
	tree := NewTree()
	var leaves [][32]byte
	var proofs []*InclusionProof
	for i := 0; i < 3; i++ {
		leaf := leafOf(string(rune('a' + i)))
		leaves = append(leaves, leaf)
		_, proof, err := tree.Append(leaf)
		if err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
		proofs = append(proofs, proof)
	}

	root := tree.Root()
	for i, leaf := range leaves {
		ok, err := VerifyProof(leaf, proofs[i], root)
		if err != nil || !ok {
			t.Errorf("leaf %d proof failed against final root: ok=%v err=%v", i, ok, err)
		}
	}
}

// TestAppendManyLeavesProofsRemainValid exercises several odd/even frontier
// shapes across successive appends, guarding against a read path that
// forgets to fold the already-maintained per-level frontier and silently
// produces a proof inconsistent with the true root.
func TestAppendManyLeavesProofsRemainValid(t *testing.T) {
	tree := NewTree()
	var leaves [][32]byte
	var proofs []*InclusionProof
	for i := 0; i < 13; i++ {
		leaf := leafOf(string(rune('a' + i)))
		leaves = append(leaves, leaf)
		_, proof, err := tree.Append(leaf)
		if err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
		proofs = append(proofs, proof)

		root := tree.Root()
		for j := 0; j <= i; j++ {
			freshProof, err := tree.Proof(uint64(j))
			if err != nil {
				t.Fatalf("proof for %d after appending %d leaves: %v", j, i+1, err)
			}
			ok, err := VerifyProof(leaves[j], freshProof, root)
			if err != nil || !ok {
				t.Fatalf("leaf %d proof invalid after appending %d leaves: ok=%v err=%v", j, i+1, ok, err)
			}
		}
	}

	root := tree.Root()
	for i, leaf := range leaves {
		ok, err := VerifyProof(leaf, proofs[i], root)
		if err != nil || !ok {
			t.Errorf("leaf %d proof captured at append time failed against final root: ok=%v err=%v", i, ok, err)
		}
	}
}

func TestAppendBatchMatchesSequentialAppend(t *testing.T) {
	leaves := make([][32]byte, 0, 7)
	for i := 0; i < 7; i++ {
		leaves = append(leaves, leafOf(string(rune('a'+i))))
	}

	sequential := NewTree()
	for _, l := range leaves {
		if _, _, err := sequential.Append(l); err != nil {
			t.Fatalf("sequential append failed: %v", err)
		}
	}

	batched := NewTree()
	positions, proofs, err := batched.AppendBatch(leaves)
	if err != nil {
		t.Fatalf("batch append failed: %v", err)
	}

	if sequential.Root() != batched.Root() {
		t.Fatalf("batch root diverges from sequential root: %x vs %x", batched.Root(), sequential.Root())
	}

	root := batched.Root()
	for i, pos := range positions {
		if pos != uint64(i) {
			t.Errorf("position mismatch at %d: got %d", i, pos)
		}
		ok, err := VerifyProof(leaves[i], proofs[i], root)
		if err != nil || !ok {
			t.Errorf("batch proof %d failed: ok=%v err=%v", i, ok, err)
		}
	}
}

func TestProofOutOfRange(t *testing.T) {
	tree := NewTree()
	tree.Append(leafOf("only"))

	_, err := tree.Proof(5)
	if err != ErrOutOfRange {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestVerifyProofRejectsWrongRoot(t *testing.T) {
	tree := NewTree()
	leaf := leafOf("vote")
	_, proof, _ := tree.Append(leaf)

	wrongRoot := codec.Hash256([]byte("not-the-root"))
	ok, err := VerifyProof(leaf, proof, wrongRoot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("proof should not verify against the wrong root")
	}
}

func TestRootOfRoots(t *testing.T) {
	r1 := leafOf("root-1")
	r2 := leafOf("root-2")
	got := RootOfRoots([][32]byte{r1, r2})
	want := codec.Hash256(r1[:], r2[:])
	if got != want {
		t.Errorf("root of roots mismatch: got %x, want %x", got, want)
	}
}
