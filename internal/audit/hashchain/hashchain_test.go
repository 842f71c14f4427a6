package hashchain

import "testing"

func TestAppendAndVerify(t *testing.T) {
	l1 := Append(GenesisHash, []byte("first"))
	if !Verify(l1, []byte("first"), GenesisHash) {
		t.Fatal("expected first link to verify")
	}

	l2 := Append(l1.Hash, []byte("second"))
	if !Verify(l2, []byte("second"), l1.Hash) {
		t.Fatal("expected second link to verify against first's hash")
	}
}

func TestVerifyDetectsTamperedPayload(t *testing.T) {
	l1 := Append(GenesisHash, []byte("first"))
	if Verify(l1, []byte("tampered"), GenesisHash) {
		t.Fatal("expected verification to fail for a tampered payload")
	}
}

func TestVerifyChain(t *testing.T) {
	payloads := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	var links []Link
	prev := GenesisHash
	for _, p := range payloads {
		l := Append(prev, p)
		links = append(links, l)
		prev = l.Hash
	}
	if !VerifyChain(links, payloads) {
		t.Fatal("expected the full chain to verify")
	}

	links[1].Hash = "corrupted"
	if VerifyChain(links, payloads) {
		t.Fatal("expected a corrupted middle link to break chain verification")
	}
}
