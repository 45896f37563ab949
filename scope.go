package mapkv

import "github.com/Giulio2002/mapkv/engine"

// txnScope binds one Store operation to a transaction.
//
// A borrowed scope wraps a caller's Txn and never ends it. An owned scope
// begins a private transaction and must end it before the operation
// returns: commit on the success path, release (abort) on every other path.
// Callers defer release right after creating the scope.
type txnScope struct {
	txn   engine.Txn
	owned bool
	err   error // why no transaction is held
}

// beginScope borrows txn when it is non-nil, otherwise begins a private
// transaction with flags.
func beginScope(env engine.Env, txn *Txn, flags uint) txnScope {
	if txn != nil {
		if txn.done {
			return txnScope{err: ErrTxnDone}
		}
		return txnScope{txn: txn.raw}
	}
	raw, err := env.BeginTxn(nil, flags)
	if err != nil {
		return txnScope{owned: true, err: err}
	}
	return txnScope{txn: raw, owned: true}
}

// hasTransaction reports whether the scope holds a live transaction.
func (sc *txnScope) hasTransaction() bool {
	return sc.txn != nil
}

// commit ends an owned transaction. Borrowed scopes are left alone: the
// caller decides their fate.
func (sc *txnScope) commit() error {
	if !sc.owned || sc.txn == nil {
		return nil
	}
	txn := sc.txn
	sc.txn = nil
	return txn.Commit()
}

// release aborts an owned transaction that was not committed.
func (sc *txnScope) release() {
	if sc.owned && sc.txn != nil {
		sc.txn.Abort()
		sc.txn = nil
	}
}
