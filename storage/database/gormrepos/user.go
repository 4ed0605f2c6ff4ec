package gormrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/user"
)

type userRecord struct {
	ID           string     `gorm:"primaryKey;size:36"`
	Name         string     `gorm:"size:255;not null"`
	Username     *string    `gorm:"size:150;uniqueIndex"`
	Email        *string    `gorm:"size:254;uniqueIndex"`
	IsActive     bool       `gorm:"not null"`
	Roles        []string   `gorm:"serializer:json;type:text;not null"`
	PasswordHash []byte     ``
	CreatedAt    time.Time  `gorm:"not null;autoCreateTime:false"`
	UpdatedAt    time.Time  `gorm:"not null;autoUpdateTime:false"`
	LastLogin    *time.Time ``
}

func (userRecord) TableName() string { return "users" }

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func fromUser(usr user.User) userRecord {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRecord{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     nullString(usr.Username),
		Email:        nullString(usr.Email),
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    nullTime(usr.LastLogin),
	}
}

func (rec userRecord) toUser() user.User {
	usr := user.User{
		ID:           rec.ID,
		Name:         rec.Name,
		IsActive:     rec.IsActive,
		Roles:        rec.Roles,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt.UTC(),
		UpdatedAt:    rec.UpdatedAt.UTC(),
	}
	if rec.Username != nil {
		usr.Username = *rec.Username
	}
	if rec.Email != nil {
		usr.Email = *rec.Email
	}
	if rec.LastLogin != nil {
		usr.LastLogin = rec.LastLogin.UTC()
	}
	return usr
}

type UserRepository struct {
	repo
}

var _ user.Repository = (*UserRepository)(nil)

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{repo{db: db}}
}

func (r *UserRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	check := func(col, val string, exists error) error {
		if val == "" {
			return nil
		}
		q := r.conn(ctx).Model(&userRecord{}).Where(col+" = ?", val)
		if len(excludedUsers) > 0 {
			ids := make([]string, 0, len(excludedUsers))
			for _, u := range excludedUsers {
				ids = append(ids, u.ID)
			}
			q = q.Where("id NOT IN ?", ids)
		}
		var count int64
		if err := q.Count(&count).Error; err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if count > 0 {
			return exists
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (r *UserRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	rec := fromUser(usr)
	if err := r.conn(ctx).Create(&rec).Error; err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return rec.toUser(), nil
}

func (r *UserRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := r.conn(ctx).Model(&userRecord{})

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + strings.ToLower(filter.Search) + "%"
			q = q.Where("(LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?)", val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			cond := r.conn(ctx)
			for i, role := range filter.Roles {
				pattern := `%"` + role + `%`
				if i == 0 {
					cond = cond.Where("roles LIKE ?", pattern)
				} else {
					cond = cond.Or("roles LIKE ?", pattern)
				}
			}
			q = q.Where(cond)
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			q = q.Where("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			q = q.Where("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	var recs []userRecord
	if err := order(q, ordering, "created_at, id").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.toUser())
	}
	return users, nil
}

func (r *UserRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := r.conn(ctx)
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		q = q.Where("id = ?", filter.ID)
	case filter.Username != "":
		q = q.Where("username = ?", filter.Username)
	case filter.Email != "":
		q = q.Where("email = ?", filter.Email)
	case len(filter.UsernameOrEmail) > 0:
		uname := filter.UsernameOrEmail[0]
		email := uname
		if len(filter.UsernameOrEmail) > 1 && filter.UsernameOrEmail[1] != "" {
			email = filter.UsernameOrEmail[1]
		}
		q = q.Where("username = ? OR email = ?", uname, email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var rec userRecord
	if err := q.Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return rec.toUser(), nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	rec := fromUser(usr)
	res := r.conn(ctx).Model(&rec).Select("*").Omit("id", "created_at").Updates(&rec)
	if res.Error != nil {
		return user.User{}, errors.Wrap(res.Error, "updating user")
	}
	if res.RowsAffected == 0 {
		return user.User{}, user.ErrNotFound
	}
	return rec.toUser(), nil
}

func (r *UserRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.conn(ctx).Where("id IN ?", ids).Delete(&userRecord{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "deleting users")
	}
	return int(res.RowsAffected), nil
}
