// Package fee tracks the fees students owe the school.
package fee

import (
	"context"
	"encoding/json"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/profile"
)

const (
	amountPlaces    = 2
	amountMaxDigits = 10
)

var (
	ErrNotFound = core.NewNotFoundError("fee")

	errAmountNotPositive = "ensure this value is greater than 0"
	errAmountPlaces      = "ensure that there are no more than 2 decimal places"
	errAmountDigits      = "ensure that there are no more than 8 digits before the decimal point"
	errDueDateRequired   = "this field is required"
)

type Fee struct {
	ID        string          `json:"id"`
	StudentID string          `json:"student_id"`
	Amount    decimal.Decimal `json:"amount"`
	DueDate   Date            `json:"due_date"`
	Paid      bool            `json:"paid"`
}

// MarshalJSON renders the amount with its 2 decimal places, e.g. "120.50".
func (f Fee) MarshalJSON() ([]byte, error) {
	type alias Fee
	return json.Marshal(struct {
		alias
		Amount  string `json:"amount"`
		Overdue bool   `json:"overdue"`
	}{
		alias:   alias(f),
		Amount:  f.Amount.StringFixed(amountPlaces),
		Overdue: f.Overdue(Today()),
	})
}

// Overdue tells whether the fee is unpaid past its due date.
func (f Fee) Overdue(today Date) bool {
	return !f.Paid && f.DueDate.Before(today)
}

type NewFee struct {
	StudentID string          `json:"student_id" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount"`
	DueDate   Date            `json:"due_date"`
}

type UpdateFee struct {
	Amount  *decimal.Decimal `json:"amount"`
	DueDate *Date            `json:"due_date"`
	Paid    *bool            `json:"paid"`
}

type Filter struct {
	StudentID string `query:"student_id"`
	Paid      *bool  `query:"paid"`
	Overdue   *bool  `query:"overdue"`
}

// Orderings maps the fields Fees can be ordered by to their columns.
var Orderings = map[string]string{
	"amount":   "amount",
	"due_date": "due_date",
	"paid":     "paid",
}

func validateAmount(amount decimal.Decimal) string {
	switch {
	case !amount.IsPositive():
		return errAmountNotPositive
	case amount.Exponent() < -amountPlaces && !amount.Equal(amount.Round(amountPlaces)):
		return errAmountPlaces
	case len(amount.Truncate(0).Abs().String()) > amountMaxDigits-amountPlaces:
		return errAmountDigits
	}
	return ""
}

func (nf NewFee) Validate() error {
	var flds []core.FieldError
	if err := core.Validate.Struct(nf); err != nil {
		var vErrs validator.ValidationErrors
		if !errors.As(err, &vErrs) {
			return err
		}
		for fld, msg := range core.ValidationMessages(vErrs) {
			flds = append(flds, core.FieldError{Field: fld, Error: msg})
		}
	}
	if msg := validateAmount(nf.Amount); msg != "" {
		flds = append(flds, core.FieldError{Field: "amount", Error: msg})
	}
	if nf.DueDate.IsZero() {
		flds = append(flds, core.FieldError{Field: "due_date", Error: errDueDateRequired})
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid fee"), flds...)
	}
	return nil
}

func (uf UpdateFee) Validate() error {
	var flds []core.FieldError
	if uf.Amount != nil {
		if msg := validateAmount(*uf.Amount); msg != "" {
			flds = append(flds, core.FieldError{Field: "amount", Error: msg})
		}
	}
	if uf.DueDate != nil && uf.DueDate.IsZero() {
		flds = append(flds, core.FieldError{Field: "due_date", Error: errDueDateRequired})
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid fee"), flds...)
	}
	return nil
}

type (
	Repository interface {
		CreateFee(ctx context.Context, f Fee) (Fee, error)
		GetFee(ctx context.Context, id string) (Fee, error)
		// QueryFees applies AND operation on the Filter fields; overdue fees are those unpaid before today.
		QueryFees(ctx context.Context, filter Filter, today Date, ordering []core.DBOrdering) ([]Fee, error)
		UpdateFee(ctx context.Context, f Fee) (Fee, error)
		DeleteFee(ctx context.Context, id string) error
	}

	StudentGetter interface {
		GetStudent(ctx context.Context, id string) (profile.Student, error)
	}

	Service struct {
		repo     Repository
		students StudentGetter
		mailSvc  core.EmailService
	}
)

func NewService(repo Repository, students StudentGetter, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, students: students, mailSvc: mailSvc}
}

func (svc *Service) Create(ctx context.Context, data NewFee) (Fee, error) {
	data.StudentID = core.CleanString(data.StudentID)
	if err := data.Validate(); err != nil {
		return Fee{}, err
	}
	if _, err := svc.students.GetStudent(ctx, data.StudentID); err != nil {
		if core.IsNotFound(err) {
			return Fee{}, core.NewFieldError("student_id", "student not found")
		}
		return Fee{}, errors.Wrap(err, "finding student")
	}
	return svc.repo.CreateFee(ctx, Fee{
		StudentID: data.StudentID,
		Amount:    data.Amount,
		DueDate:   data.DueDate,
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Fee, error) {
	return svc.repo.GetFee(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter Filter, ordering []core.DBOrdering) ([]Fee, error) {
	filter.StudentID = core.CleanString(filter.StudentID)
	return svc.repo.QueryFees(ctx, filter, Today(), core.CleanOrderings(ordering, Orderings))
}

func (svc *Service) Update(ctx context.Context, f Fee, data UpdateFee) (Fee, error) {
	if err := data.Validate(); err != nil {
		return Fee{}, err
	}
	if data.Amount != nil {
		f.Amount = *data.Amount
	}
	if data.DueDate != nil {
		f.DueDate = *data.DueDate
	}
	if data.Paid != nil {
		f.Paid = *data.Paid
	}
	return svc.repo.UpdateFee(ctx, f)
}

// Pay marks the fee as paid. Paying a paid fee is a no-op.
func (svc *Service) Pay(ctx context.Context, f Fee) (Fee, error) {
	if f.Paid {
		return f, nil
	}
	f.Paid = true
	return svc.repo.UpdateFee(ctx, f)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteFee(ctx, id)
}

type reminderItem struct {
	Amount  string
	DueDate string
}

// RemindOverdue emails every student with overdue fees the list of these fees.
// It returns the number of students reminded.
func (svc *Service) RemindOverdue(ctx context.Context) (int, error) {
	overdue := true
	fees, err := svc.repo.QueryFees(ctx, Filter{Overdue: &overdue}, Today(), []core.DBOrdering{{Field: "due_date", Ascending: true}})
	if err != nil {
		return 0, errors.Wrap(err, "querying overdue fees")
	}

	var (
		order     []string
		byStudent = make(map[string][]reminderItem)
	)
	for _, f := range fees {
		if _, ok := byStudent[f.StudentID]; !ok {
			order = append(order, f.StudentID)
		}
		byStudent[f.StudentID] = append(byStudent[f.StudentID], reminderItem{
			Amount:  f.Amount.StringFixed(amountPlaces),
			DueDate: f.DueDate.String(),
		})
	}

	messages := make([]*core.EmailMessage, 0, len(order))
	for _, id := range order {
		student, err := svc.students.GetStudent(ctx, id)
		if err != nil {
			return 0, errors.Wrap(err, "finding student")
		}
		if student.User.Email == "" || !student.User.IsActive {
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: student.User.Name, Address: student.User.Email}},
			Subject:      "Overdue Fees",
			TemplateName: "fee_reminder",
			TemplateData: map[string]interface{}{
				"Name": student.User.Name,
				"Fees": byStudent[id],
			},
		})
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
	return len(messages), nil
}
