package escrow

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func newWalletService(startBalance float64) (*Service, *memWalletRepo, *memTxRepo) {
	wallets := newMemWalletRepo()
	txs := &memTxRepo{}
	return NewService(wallets, txs, startBalance), wallets, txs
}

func TestConnectCreatesWalletWithStartBalance(t *testing.T) {
	svc, _, _ := newWalletService(1000)

	w, err := svc.Connect(context.Background(), "0xabc")
	if err != nil {
		t.Fatal(err)
	}
	if w.Address != "0xabc" {
		t.Errorf("address = %q", w.Address)
	}
	if w.Balance != 1000 {
		t.Errorf("balance = %v, want 1000", w.Balance)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	svc, wallets, _ := newWalletService(1000)
	ctx := context.Background()

	first, err := svc.Connect(ctx, "0xabc")
	if err != nil {
		t.Fatal(err)
	}

	// A balance change between connects must survive the second connect.
	if err := wallets.UpdateBalance(ctx, first.ID, 750); err != nil {
		t.Fatal(err)
	}

	second, err := svc.Connect(ctx, "0xabc")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Error("second connect created a new wallet")
	}
	if second.Balance != 750 {
		t.Errorf("balance = %v, want preserved 750", second.Balance)
	}
}

func TestConnectRequiresAddress(t *testing.T) {
	svc, _, _ := newWalletService(1000)
	if _, err := svc.Connect(context.Background(), "  "); err == nil {
		t.Error("Connect accepted a blank address")
	}
}

func TestGetWalletUnknownAddress(t *testing.T) {
	svc, _, _ := newWalletService(1000)
	if _, err := svc.GetWallet(context.Background(), "0xnope"); err != ErrWalletNotFound {
		t.Errorf("err = %v, want ErrWalletNotFound", err)
	}
}

func TestListOrderTransactions(t *testing.T) {
	svc, _, txs := newWalletService(1000)
	ctx := context.Background()

	w, err := svc.Connect(ctx, "0xabc")
	if err != nil {
		t.Fatal(err)
	}

	orderID := uuid.New()
	otherOrder := uuid.New()
	for _, tx := range []*Transaction{
		{ID: uuid.New(), WalletID: w.ID, OrderID: &orderID, Kind: KindLock, Amount: 200},
		{ID: uuid.New(), WalletID: w.ID, OrderID: &otherOrder, Kind: KindLock, Amount: 50},
		{ID: uuid.New(), WalletID: w.ID, OrderID: &orderID, Kind: KindRefund, Amount: 200},
	} {
		if err := txs.Append(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	list, err := svc.ListOrderTransactions(ctx, orderID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Kind != KindLock || list[1].Kind != KindRefund {
		t.Errorf("kinds = %s, %s, want lock then refund", list[0].Kind, list[1].Kind)
	}
}
