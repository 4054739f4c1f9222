package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-locator/internal/models"
)

// RoleCollection returns the partition that holds accounts of role
func RoleCollection(role models.Role) string {
	switch role {
	case models.RoleTeacher:
		return CollectionTeachers
	case models.RoleAdmin:
		return CollectionAdmins
	default:
		return CollectionStudents
	}
}

// DocumentAccountRepository implements AccountRepository over a DocumentStore
type DocumentAccountRepository struct {
	store DocumentStore
}

// NewAccountRepository creates the account repository
func NewAccountRepository(store DocumentStore) *DocumentAccountRepository {
	return &DocumentAccountRepository{store: store}
}

func accountFromDocument(role models.Role, doc Document) models.Account {
	account := models.Account{
		ID:             doc.ID,
		Role:           role,
		ApprovalStatus: models.ApprovalStatus(doc.Fields.String("approval_status")),
		Name:           doc.Fields.String("name"),
		Email:          doc.Fields.String("email"),
		Phone:          doc.Fields.String("phone"),
		Profession:     doc.Fields.String("profession"),
	}
	if created := doc.Fields.Time("created_at"); created != nil {
		account.CreatedAt = *created
	}
	return account
}

func (r *DocumentAccountRepository) Get(ctx context.Context, role models.Role, id string) (*models.Account, error) {
	doc, err := r.store.Get(ctx, RoleCollection(role), id)
	if err != nil {
		return nil, err
	}
	account := accountFromDocument(role, *doc)
	return &account, nil
}

func (r *DocumentAccountRepository) Find(ctx context.Context, id string) (*models.Account, error) {
	for _, role := range []models.Role{models.RoleTeacher, models.RoleStudent, models.RoleAdmin} {
		account, err := r.Get(ctx, role, id)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}
	return nil, models.ErrNotFound
}

func (r *DocumentAccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	fields := Fields{
		"name":            account.Name,
		"email":           account.Email,
		"approval_status": string(account.ApprovalStatus),
		"created_at":      formatTime(account.CreatedAt),
	}
	if account.Role == models.RoleTeacher {
		fields["phone"] = account.Phone
		fields["profession"] = account.Profession
	}
	if err := r.store.Set(ctx, RoleCollection(account.Role), account.ID, fields, false); err != nil {
		return fmt.Errorf("failed to create %s account: %w", account.Role, err)
	}
	return nil
}

func (r *DocumentAccountRepository) List(ctx context.Context, role models.Role, status models.ApprovalStatus) ([]models.Account, error) {
	docs, err := r.store.Query(ctx, RoleCollection(role), statusFilter(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s accounts: %w", role, err)
	}
	return accountsFromDocuments(role, docs), nil
}

func (r *DocumentAccountRepository) SetStatus(ctx context.Context, role models.Role, id string, status models.ApprovalStatus) error {
	return r.store.Update(ctx, RoleCollection(role), id, Fields{"approval_status": string(status)})
}

func (r *DocumentAccountRepository) Delete(ctx context.Context, role models.Role, id string) error {
	return r.store.Delete(ctx, RoleCollection(role), id)
}

func (r *DocumentAccountRepository) Watch(ctx context.Context, role models.Role, status models.ApprovalStatus, onChange func([]models.Account)) (func(), error) {
	return r.store.Subscribe(ctx, RoleCollection(role), statusFilter(status), func(docs []Document) {
		onChange(accountsFromDocuments(role, docs))
	})
}

func statusFilter(status models.ApprovalStatus) Filter {
	if status == "" {
		return nil
	}
	return Filter{"approval_status": string(status)}
}

func accountsFromDocuments(role models.Role, docs []Document) []models.Account {
	accounts := make([]models.Account, 0, len(docs))
	for _, doc := range docs {
		accounts = append(accounts, accountFromDocument(role, doc))
	}
	return accounts
}
