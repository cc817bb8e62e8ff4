package backend

import (
	"context"
	"errors"

	"github.com/five82/quad/internal/campus"
)

// ErrRejected marks an expected, business-level refusal from the backend
// (failed RFID check, renewal limit, grade service refusing the write).
// Callers roll back and tell the user; nothing else is wrong.
var ErrRejected = errors.New("rejected by backend")

// Op names a remote write.
type Op string

const (
	OpUpdateGrade Op = "update_grade"
	OpCheckout    Op = "checkout_book"
	OpReturn      Op = "return_book"
	OpRenew       Op = "renew_book"
)

// Backend is the set of remote writes the mutation controller depends on.
// Every method either returns the server's canonical copy of the entity or an
// error; it never returns a partially applied entity.
type Backend interface {
	UpdateGrade(ctx context.Context, grade campus.Grade) (campus.Grade, error)
	CheckoutBook(ctx context.Context, book campus.LibraryBook) (campus.LibraryBook, error)
	ReturnBook(ctx context.Context, book campus.LibraryBook) (campus.LibraryBook, error)
	RenewBook(ctx context.Context, book campus.LibraryBook) (campus.LibraryBook, error)
}

// Ensure implementations satisfy Backend at compile time.
var (
	_ Backend = (*Simulator)(nil)
	_ Backend = (*Client)(nil)
)
