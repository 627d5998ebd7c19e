package chain_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/chain"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const timeStamp = 1_700_000_000

func newChain(t *testing.T) *chain.Chain {
	c, err := chain.New(chain.Config{
		Clock: chain.FixedClock(timeStamp),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a chain: %s", failed, err)
	}
	return c
}

func TestGenesis(t *testing.T) {
	t.Log("Given the need to seed a new chain with a genesis entry.")
	{
		c := newChain(t)

		if c.Length() != 1 {
			t.Logf("\t\tgot: %d", c.Length())
			t.Logf("\t\texp: %d", 1)
			t.Fatalf("\t%s\tShould have exactly one entry.", failed)
		}
		t.Logf("\t%s\tShould have exactly one entry.", success)

		g := c.Genesis()
		if g.Identity.Name != chain.GenesisName || g.Payload != chain.GenesisPayload {
			t.Logf("\t\tgot: %s", g)
			t.Fatalf("\t%s\tShould have the genesis identity and payload.", failed)
		}
		t.Logf("\t%s\tShould have the genesis identity and payload.", success)

		if string(g.Identity.KeyBlob) != chain.GenesisKeyBlob {
			t.Fatalf("\t%s\tShould have the genesis key blob.", failed)
		}
		t.Logf("\t%s\tShould have the genesis key blob.", success)

		if len(g.PrevHash) != 0 || g.Nonce != 0 || g.TimeStamp != timeStamp {
			t.Logf("\t\tprev: %s nonce: %d timestamp: %d", g.PrevHash, g.Nonce, g.TimeStamp)
			t.Fatalf("\t%s\tShould have an empty prev hash, zero nonce and the clock time.", failed)
		}
		t.Logf("\t%s\tShould have an empty prev hash, zero nonce and the clock time.", success)

		if got := c.ByIdentity(chain.GenesisName); len(got) != 1 {
			t.Fatalf("\t%s\tShould index the genesis entry by identity: %d", failed, len(got))
		}
		t.Logf("\t%s\tShould index the genesis entry by identity.", success)
	}
}

func TestAppend(t *testing.T) {
	t.Log("Given the need to append entries without validation.")
	{
		c := newChain(t)

		id := chain.NewIdentity("TestWizard", []byte{9, 10, 11, 12})
		e := chain.NewEntry(id, "TestingMagic!", timeStamp, c.TailHash())
		e.Nonce = 42

		c.Append(e)

		if c.Length() != 2 {
			t.Fatalf("\t%s\tShould increase the length by one: %d", failed, c.Length())
		}
		t.Logf("\t%s\tShould increase the length by one.", success)

		if got := c.Tail(); !reflect.DeepEqual(got, e) {
			t.Logf("\t\tgot: %+v", got)
			t.Logf("\t\texp: %+v", e)
			t.Fatalf("\t%s\tShould store the exact entry appended.", failed)
		}
		t.Logf("\t%s\tShould store the exact entry appended.", success)

		// The chain holds its own copy of the bytes.
		e.PrevHash[0] ^= 0xff
		e.Identity.KeyBlob[0] = 0
		if got := c.Tail(); got.PrevHash.Equal(e.PrevHash) || got.Identity.KeyBlob[0] != 9 {
			t.Fatalf("\t%s\tShould not be affected by later caller mutation.", failed)
		}
		t.Logf("\t%s\tShould not be affected by later caller mutation.", success)

		bad := chain.NewEntry(id, "unchecked", timeStamp, chain.Hash{1, 2, 3})
		c.Append(bad)
		if c.Length() != 3 {
			t.Fatalf("\t%s\tShould append without checking linkage.", failed)
		}
		t.Logf("\t%s\tShould append without checking linkage.", success)
	}
}

func TestHash(t *testing.T) {
	c := newChain(t)

	base := chain.NewEntry(chain.NewIdentity("Gandalf", []byte{1, 2, 3, 4}), "You shall not pass!", timeStamp, chain.Hash{0xaa, 0xbb})

	h1 := c.Hash(base)
	h2 := c.Hash(base)
	if !h1.Equal(h2) {
		t.Logf("got: %s", h1)
		t.Logf("exp: %s", h2)
		t.Fatalf("Should get back the same hash twice.")
	}

	if len(h1) != chain.HashLength {
		t.Fatalf("Should get back a %d byte hash, got %d.", chain.HashLength, len(h1))
	}

	type table struct {
		name   string
		mutate func(e *chain.Entry)
	}

	tt := []table{
		{name: "nonce", mutate: func(e *chain.Entry) { e.Nonce++ }},
		{name: "payload", mutate: func(e *chain.Entry) { e.Payload = "You shall pass!" }},
		{name: "timestamp", mutate: func(e *chain.Entry) { e.TimeStamp++ }},
		{name: "prevhash", mutate: func(e *chain.Entry) { e.PrevHash = chain.Hash{0xaa, 0xbc} }},
		{name: "name", mutate: func(e *chain.Entry) { e.Identity.Name = "Saruman" }},
		{name: "keyblob", mutate: func(e *chain.Entry) { e.Identity.KeyBlob = []byte{1, 2, 3, 5} }},
		{name: "boundary", mutate: func(e *chain.Entry) { e.Identity.Name = "Gandal"; e.Identity.KeyBlob = []byte{'f', 1, 2, 3, 4} }},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			e := chain.NewEntry(base.Identity, base.Payload, base.TimeStamp, base.PrevHash)
			tst.mutate(&e)

			if c.Hash(e).Equal(h1) {
				t.Fatalf("Test %s:\tShould get a different hash when the field changes.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func TestHasher(t *testing.T) {
	for _, name := range chain.Hashers() {
		f := func(t *testing.T) {
			c, err := chain.New(chain.Config{
				Clock:  chain.FixedClock(timeStamp),
				Hasher: name,
			})
			if err != nil {
				t.Fatalf("Test %s:\tShould be able to construct a chain: %s", name, err)
			}

			if h := c.TailHash(); len(h) != chain.HashLength {
				t.Fatalf("Test %s:\tShould get back a %d byte hash, got %d.", name, chain.HashLength, len(h))
			}
		}

		t.Run(name, f)
	}

	sha, _ := chain.New(chain.Config{Clock: chain.FixedClock(timeStamp), Hasher: chain.HasherSHA256})
	kec, _ := chain.New(chain.Config{Clock: chain.FixedClock(timeStamp), Hasher: chain.HasherKeccak256})
	if sha.TailHash().Equal(kec.TailHash()) {
		t.Fatalf("Should get different hashes from different algorithms.")
	}

	if _, err := chain.New(chain.Config{Hasher: "md5"}); !errors.Is(err, chain.ErrUnknownHasher) {
		t.Logf("got: %v", err)
		t.Logf("exp: %v", chain.ErrUnknownHasher)
		t.Fatalf("Should reject an unknown hasher.")
	}
}

func TestValidate(t *testing.T) {
	t.Log("Given the need to validate entry linkage against the tail.")
	{
		c := newChain(t)
		id := chain.NewIdentity("Gandalf", []byte{1, 2, 3, 4})

		good := chain.NewEntry(id, "You shall not pass!", timeStamp, c.TailHash())
		if err := c.Validate(good); err != nil {
			t.Fatalf("\t%s\tShould accept an entry linked to the tail: %s", failed, err)
		}
		t.Logf("\t%s\tShould accept an entry linked to the tail.", success)

		bad := chain.NewEntry(id, "You shall not pass!", timeStamp, chain.Hash{0xde, 0xad})
		if err := c.Validate(bad); !errors.Is(err, chain.ErrLinkage) {
			t.Fatalf("\t%s\tShould reject an entry with a wrong prev hash: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject an entry with a wrong prev hash.", success)

		if c.IsValid(bad) {
			t.Fatalf("\t%s\tShould report the bad entry as invalid.", failed)
		}
		t.Logf("\t%s\tShould report the bad entry as invalid.", success)

		c.Append(good)
		if c.IsValid(good) {
			t.Fatalf("\t%s\tShould reject a stale prev hash once the tail moves.", failed)
		}
		t.Logf("\t%s\tShould reject a stale prev hash once the tail moves.", success)
	}
}

func TestMine(t *testing.T) {
	for _, difficulty := range []uint{0, 1, 2} {
		f := func(t *testing.T) {
			c := newChain(t)

			e, err := c.NextEntry(chain.NewIdentity("TestWizard", []byte{9, 10, 11, 12}), "TestingMagic!")
			if err != nil {
				t.Fatalf("Should be able to construct the next entry: %s", err)
			}

			res, err := c.Mine(context.Background(), e, difficulty)
			if err != nil {
				t.Fatalf("Should be able to mine the entry: %s", err)
			}

			if c.Length() != 2 {
				t.Fatalf("Should have appended the mined entry: %d", c.Length())
			}

			tail := c.Tail()
			if !c.MatchesDifficulty(tail, difficulty) {
				t.Fatalf("Should have a hash that meets the difficulty: %s", c.Hash(tail))
			}

			if tail.Nonce != res.Nonce || !c.Hash(tail).Equal(res.Hash) {
				t.Logf("got: %d %s", tail.Nonce, c.Hash(tail))
				t.Logf("exp: %d %s", res.Nonce, res.Hash)
				t.Fatalf("Should report the winning nonce and hash.")
			}

			if res.Hash.LeadingZeros() < difficulty {
				t.Fatalf("Should have at least %d leading zero bytes: %s", difficulty, res.Hash)
			}

			if difficulty == 0 && (res.Nonce != 0 || res.Attempts != 1) {
				t.Fatalf("Should solve difficulty 0 on the first attempt: nonce %d attempts %d", res.Nonce, res.Attempts)
			}
		}

		t.Run(string(rune('0'+difficulty)), f)
	}
}

func TestMineChainOfTwo(t *testing.T) {
	const difficulty = 2

	t.Log("Given the need to mine two entries onto the genesis entry.")
	{
		c := newChain(t)

		gandalf := chain.NewIdentity("Gandalf", []byte{1, 2, 3, 4})
		e := chain.NewEntry(gandalf, "You shall not pass!", timeStamp, c.Hash(c.Entries()[0]))
		if _, err := c.Mine(context.Background(), e, difficulty); err != nil {
			t.Fatalf("\t%s\tShould be able to mine Gandalf's entry: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine Gandalf's entry.", success)

		dumbledore := chain.NewIdentity("Dumbledore", []byte{5, 6, 7, 8})
		e = chain.NewEntry(dumbledore, "Expelliarmus!", timeStamp+1, c.Hash(c.Entries()[1]))
		if _, err := c.Mine(context.Background(), e, difficulty); err != nil {
			t.Fatalf("\t%s\tShould be able to mine Dumbledore's entry: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine Dumbledore's entry.", success)

		entries := c.Entries()
		if len(entries) != 3 {
			t.Fatalf("\t%s\tShould have three entries: %d", failed, len(entries))
		}
		t.Logf("\t%s\tShould have three entries.", success)

		for i := 1; i < len(entries); i++ {
			if !entries[i].PrevHash.Equal(c.Hash(entries[i-1])) {
				t.Fatalf("\t%s\tShould link entry %d to entry %d.", failed, i, i-1)
			}
			if !c.MatchesDifficulty(entries[i], difficulty) {
				t.Fatalf("\t%s\tShould have entry %d meet the difficulty: %s", failed, i, c.Hash(entries[i]))
			}
		}
		t.Logf("\t%s\tShould link every entry and meet the difficulty.", success)

		if err := c.VerifyAll(difficulty); err != nil {
			t.Fatalf("\t%s\tShould verify the whole chain: %s", failed, err)
		}
		t.Logf("\t%s\tShould verify the whole chain.", success)

		if entries[1].Payload != "You shall not pass!" || entries[2].Identity.Name != "Dumbledore" {
			t.Fatalf("\t%s\tShould keep the entries in mining order.", failed)
		}
		t.Logf("\t%s\tShould keep the entries in mining order.", success)
	}
}

func TestMineLinkageError(t *testing.T) {
	c := newChain(t)

	e := chain.NewEntry(chain.NewIdentity("Saruman", nil), "stale", timeStamp, chain.Hash{0xba, 0xd0})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.Mine(ctx, e, 1)
	if !errors.Is(err, chain.ErrLinkage) {
		t.Logf("got: %v", err)
		t.Logf("exp: %v", chain.ErrLinkage)
		t.Fatalf("Should fail fast with a linkage error.")
	}

	if c.Length() != 1 {
		t.Fatalf("Should not append an entry that fails linkage: %d", c.Length())
	}
}

func TestMineExhausted(t *testing.T) {
	c := newChain(t)

	e, err := c.NextEntry(chain.NewIdentity("Gandalf", nil), "never")
	if err != nil {
		t.Fatalf("Should be able to construct the next entry: %s", err)
	}

	res, err := c.Mine(context.Background(), e, chain.HashLength+1, chain.WithMaxAttempts(100))
	if !errors.Is(err, chain.ErrSearchExhausted) {
		t.Logf("got: %v", err)
		t.Logf("exp: %v", chain.ErrSearchExhausted)
		t.Fatalf("Should report the search as exhausted.")
	}

	if res.Attempts != 0 || c.Length() != 1 {
		t.Fatalf("Should not append on an exhausted search.")
	}
}

func TestMineCancelled(t *testing.T) {
	c := newChain(t)

	e, err := c.NextEntry(chain.NewIdentity("Gandalf", nil), "never")
	if err != nil {
		t.Fatalf("Should be able to construct the next entry: %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Mine(ctx, e, chain.HashLength)
	if !errors.Is(err, chain.ErrCancelled) || !errors.Is(err, context.DeadlineExceeded) {
		t.Logf("got: %v", err)
		t.Logf("exp: %v", chain.ErrCancelled)
		t.Fatalf("Should report the search as cancelled.")
	}

	if c.Length() != 1 {
		t.Fatalf("Should not append on a cancelled search.")
	}
}

func TestMineTailMoved(t *testing.T) {
	c := newChain(t)

	e, err := c.NextEntry(chain.NewIdentity("Gandalf", nil), "first")
	if err != nil {
		t.Fatalf("Should be able to construct the next entry: %s", err)
	}

	// Another writer lands an entry before this one is mined.
	other, _ := c.NextEntry(chain.NewIdentity("Saruman", nil), "sneaky")
	c.Append(other)

	if _, err := c.Mine(context.Background(), e, 0); !errors.Is(err, chain.ErrLinkage) {
		t.Fatalf("Should reject an entry whose tail has moved: %v", err)
	}
}

func TestClockFailure(t *testing.T) {
	broken := func() (uint64, error) {
		return 0, errors.New("no clock")
	}

	if _, err := chain.New(chain.Config{Clock: broken}); !errors.Is(err, chain.ErrClockUnavailable) {
		t.Logf("got: %v", err)
		t.Logf("exp: %v", chain.ErrClockUnavailable)
		t.Fatalf("Should surface a clock failure from New.")
	}

	calls := 0
	flaky := func() (uint64, error) {
		calls++
		if calls > 1 {
			return 0, errors.New("clock went away")
		}
		return timeStamp, nil
	}

	c, err := chain.New(chain.Config{Clock: flaky})
	if err != nil {
		t.Fatalf("Should be able to construct a chain: %s", err)
	}

	if _, err := c.NextEntry(chain.NewIdentity("Gandalf", nil), "late"); !errors.Is(err, chain.ErrClockUnavailable) {
		t.Fatalf("Should surface a clock failure from NextEntry: %v", err)
	}
}

func TestIndexConsistency(t *testing.T) {
	c := newChain(t)

	names := []string{"Gandalf", "Dumbledore", "Gandalf", "Merlin", "Dumbledore", "Gandalf"}
	for i, name := range names {
		e, err := c.NextEntry(chain.NewIdentity(name, nil), string(rune('a'+i)))
		if err != nil {
			t.Fatalf("Should be able to construct the next entry: %s", err)
		}
		if _, err := c.Mine(context.Background(), e, 0); err != nil {
			t.Fatalf("Should be able to mine the entry: %s", err)
		}
	}

	entries := c.Entries()
	for _, name := range c.Identities() {
		var exp []chain.Entry
		for _, e := range entries {
			if e.Identity.Name == name {
				exp = append(exp, e)
			}
		}

		got := c.ByIdentity(name)
		if !reflect.DeepEqual(got, exp) {
			t.Logf("got: %v", got)
			t.Logf("exp: %v", exp)
			t.Fatalf("Should index %s's entries in chain order.", name)
		}
	}

	if got := c.Identities(); !reflect.DeepEqual(got, []string{"Dumbledore", "Gandalf", "Merlin"}) {
		t.Fatalf("Should list every identity once: %v", got)
	}

	if got := c.ByIdentity("Nobody"); len(got) != 0 {
		t.Fatalf("Should get nothing for an unknown identity: %v", got)
	}
}

func TestParseHash(t *testing.T) {
	c := newChain(t)

	h := c.TailHash()
	got, err := chain.ParseHash(h.String())
	if err != nil {
		t.Fatalf("Should be able to parse a hash: %s", err)
	}

	if !got.Equal(h) {
		t.Logf("got: %s", got)
		t.Logf("exp: %s", h)
		t.Fatalf("Should get back the same hash.")
	}

	if _, err := chain.ParseHash("nothex"); err == nil {
		t.Fatalf("Should reject a string without the 0x prefix.")
	}

	if empty, err := chain.ParseHash("0x"); err != nil || len(empty) != 0 {
		t.Fatalf("Should parse 0x as an empty hash.")
	}
}
