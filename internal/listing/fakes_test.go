package listing

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

var (
	testAccount     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testCollection  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testMarketplace = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

// callLog records external calls in the order they happen.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

type fakeTx struct {
	name    string
	hash    common.Hash
	waitErr error
	log     *callLog
}

func (t *fakeTx) Hash() common.Hash { return t.hash }

func (t *fakeTx) Wait(ctx context.Context) error {
	t.log.add(t.name + ".wait")
	return t.waitErr
}

type fakeCollection struct {
	log         *callLog
	approved    bool
	checkErr    error
	approveErr  error
	approveWait error
	panicWith   any
}

func (c *fakeCollection) Address() common.Address { return testCollection }

func (c *fakeCollection) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	c.log.add("isApprovedForAll")
	if c.panicWith != nil {
		panic(c.panicWith)
	}
	return c.approved, c.checkErr
}

func (c *fakeCollection) SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (domain.PendingTx, error) {
	c.log.add("setApprovalForAll")
	if c.approveErr != nil {
		return nil, c.approveErr
	}
	c.approved = true
	return &fakeTx{name: "approval", hash: common.HexToHash("0xaa"), waitErr: c.approveWait, log: c.log}, nil
}

type fakeMarketplace struct {
	log       *callLog
	makeErr   error
	waitErr   error
	lastPrice *big.Int
	lastToken *big.Int
}

func (m *fakeMarketplace) Address() common.Address { return testMarketplace }

func (m *fakeMarketplace) MakeItem(ctx context.Context, collection common.Address, tokenID, price *big.Int) (domain.PendingTx, error) {
	m.log.add("makeItem")
	m.lastPrice = price
	m.lastToken = tokenID
	if m.makeErr != nil {
		return nil, m.makeErr
	}
	return &fakeTx{name: "listing", hash: common.HexToHash("0xbb"), waitErr: m.waitErr, log: m.log}, nil
}

type recordingToaster struct {
	mu     sync.Mutex
	toasts []domain.Toast
}

func (r *recordingToaster) Toast(ctx context.Context, t domain.Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

func (r *recordingToaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.toasts)
}
