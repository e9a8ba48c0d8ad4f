package queries

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const loanColumns = `id, user_id, book_id, status, borrow_date, due_date, return_date, returned_by, fine_amount, fine_paid, renewal_count, notes, created_at, updated_at`

func scanLoan(row pgx.Row) (Loan, error) {
	var l Loan
	err := row.Scan(
		&l.ID,
		&l.UserID,
		&l.BookID,
		&l.Status,
		&l.BorrowDate,
		&l.DueDate,
		&l.ReturnDate,
		&l.ReturnedBy,
		&l.FineAmount,
		&l.FinePaid,
		&l.RenewalCount,
		&l.Notes,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

func collectLoans(rows pgx.Rows) ([]Loan, error) {
	defer rows.Close()
	var loans []Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

type CreateLoanParams struct {
	UserID  int32
	BookID  int32
	DueDate pgtype.Timestamp
	Notes   pgtype.Text
}

const createLoan = `
INSERT INTO loans (user_id, book_id, status, borrow_date, due_date, notes)
VALUES ($1, $2, 'borrowed', now(), $3, $4)
RETURNING ` + loanColumns

func (q *Queries) CreateLoan(ctx context.Context, arg CreateLoanParams) (Loan, error) {
	return scanLoan(q.db.QueryRow(ctx, createLoan, arg.UserID, arg.BookID, arg.DueDate, arg.Notes))
}

const getLoanByID = `
SELECT ` + loanColumns + `
FROM loans
WHERE id = $1
`

func (q *Queries) GetLoanByID(ctx context.Context, id int32) (Loan, error) {
	return scanLoan(q.db.QueryRow(ctx, getLoanByID, id))
}

type GetActiveLoanByUserAndBookParams struct {
	UserID int32
	BookID int32
}

const getActiveLoanByUserAndBook = `
SELECT ` + loanColumns + `
FROM loans
WHERE user_id = $1 AND book_id = $2 AND status IN ('borrowed', 'overdue')
LIMIT 1
`

func (q *Queries) GetActiveLoanByUserAndBook(ctx context.Context, arg GetActiveLoanByUserAndBookParams) (Loan, error) {
	return scanLoan(q.db.QueryRow(ctx, getActiveLoanByUserAndBook, arg.UserID, arg.BookID))
}

const countActiveLoansByUser = `
SELECT COUNT(*)
FROM loans
WHERE user_id = $1 AND status IN ('borrowed', 'overdue')
`

func (q *Queries) CountActiveLoansByUser(ctx context.Context, userID int32) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countActiveLoansByUser, userID).Scan(&count)
	return count, err
}

type ListLoansByUserParams struct {
	UserID int32
	Limit  int32
	Offset int32
}

const listLoansByUser = `
SELECT ` + loanColumns + `
FROM loans
WHERE user_id = $1
ORDER BY borrow_date DESC
LIMIT $2 OFFSET $3
`

func (q *Queries) ListLoansByUser(ctx context.Context, arg ListLoansByUserParams) ([]Loan, error) {
	rows, err := q.db.Query(ctx, listLoansByUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

const listOverdueLoans = `
SELECT ` + loanColumns + `
FROM loans
WHERE status IN ('borrowed', 'overdue') AND due_date < now()
ORDER BY due_date ASC
`

func (q *Queries) ListOverdueLoans(ctx context.Context) ([]Loan, error) {
	rows, err := q.db.Query(ctx, listOverdueLoans)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

type ReturnLoanParams struct {
	ID         int32
	ReturnedBy pgtype.Int4
	FineAmount pgtype.Numeric
	Notes      pgtype.Text
}

const returnLoan = `
UPDATE loans
SET status = 'returned',
    return_date = now(),
    returned_by = $2,
    fine_amount = COALESCE($3, fine_amount),
    notes = COALESCE(NULLIF($4, ''), notes),
    updated_at = now()
WHERE id = $1 AND status IN ('borrowed', 'overdue')
RETURNING ` + loanColumns

func (q *Queries) ReturnLoan(ctx context.Context, arg ReturnLoanParams) (Loan, error) {
	return scanLoan(q.db.QueryRow(ctx, returnLoan, arg.ID, arg.ReturnedBy, arg.FineAmount, arg.Notes))
}

type RenewLoanParams struct {
	ID      int32
	DueDate pgtype.Timestamp
}

const renewLoan = `
UPDATE loans
SET status = 'borrowed',
    due_date = $2,
    renewal_count = renewal_count + 1,
    updated_at = now()
WHERE id = $1 AND status IN ('borrowed', 'overdue')
RETURNING ` + loanColumns

func (q *Queries) RenewLoan(ctx context.Context, arg RenewLoanParams) (Loan, error) {
	return scanLoan(q.db.QueryRow(ctx, renewLoan, arg.ID, arg.DueDate))
}

type CreateLoanRenewalParams struct {
	LoanID     int32
	NewDueDate pgtype.Timestamp
	RenewedBy  int32
}

const createLoanRenewal = `
INSERT INTO loan_renewals (loan_id, renewed_at, new_due_date, renewed_by)
VALUES ($1, now(), $2, $3)
RETURNING id, loan_id, renewed_at, new_due_date, renewed_by
`

func (q *Queries) CreateLoanRenewal(ctx context.Context, arg CreateLoanRenewalParams) (LoanRenewal, error) {
	row := q.db.QueryRow(ctx, createLoanRenewal, arg.LoanID, arg.NewDueDate, arg.RenewedBy)
	var r LoanRenewal
	err := row.Scan(&r.ID, &r.LoanID, &r.RenewedAt, &r.NewDueDate, &r.RenewedBy)
	return r, err
}

const listRenewalsByLoan = `
SELECT id, loan_id, renewed_at, new_due_date, renewed_by
FROM loan_renewals
WHERE loan_id = $1
ORDER BY renewed_at ASC
`

func (q *Queries) ListRenewalsByLoan(ctx context.Context, loanID int32) ([]LoanRenewal, error) {
	rows, err := q.db.Query(ctx, listRenewalsByLoan, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var renewals []LoanRenewal
	for rows.Next() {
		var r LoanRenewal
		if err := rows.Scan(&r.ID, &r.LoanID, &r.RenewedAt, &r.NewDueDate, &r.RenewedBy); err != nil {
			return nil, err
		}
		renewals = append(renewals, r)
	}
	return renewals, rows.Err()
}

// MarkLoansOverdue refreshes stored status for listings; fine and renewal
// checks never trust it and always recompute from current time
const markLoansOverdue = `
UPDATE loans
SET status = 'overdue', updated_at = now()
WHERE status = 'borrowed' AND due_date < now()
`

func (q *Queries) MarkLoansOverdue(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, markLoansOverdue)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const payLoanFine = `
UPDATE loans
SET fine_paid = true, updated_at = now()
WHERE id = $1
`

func (q *Queries) PayLoanFine(ctx context.Context, id int32) error {
	_, err := q.db.Exec(ctx, payLoanFine, id)
	return err
}

const listLoansDueSoon = `
SELECT ` + loanColumns + `
FROM loans
WHERE status = 'borrowed'
  AND due_date > now()
  AND due_date < now() + ($1 * interval '1 day')
ORDER BY due_date ASC
`

func (q *Queries) ListLoansDueSoon(ctx context.Context, withinDays int32) ([]Loan, error) {
	rows, err := q.db.Query(ctx, listLoansDueSoon, withinDays)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}
