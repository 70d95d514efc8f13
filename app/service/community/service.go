package community

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"portfolio/app/client/db"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/oops"
)

type NewExperience struct {
	Role        string `json:"role" validate:"required"`
	CompanyName string `json:"company_name" validate:"required"`
	Experience  string `json:"experience" validate:"required"`
	UserID      string `json:"-" validate:"required"`
}

type Experience struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"`
	CompanyName string    `json:"company_name"`
	Experience  string    `json:"experience"`
	UserID      string    `json:"user_id"`
	AuthorName  *string   `json:"author_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Service stores interview experiences shared on the community board.
type Service struct {
	db       *sql.DB
	validate *validator.Validate
	now      func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	return NewService(do.MustInvoke[*db.Client](di).DB), nil
}

func NewService(sqlDB *sql.DB) *Service {
	return &Service{
		db:       sqlDB,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req NewExperience) (*Experience, error) {
	req.Role = strings.TrimSpace(req.Role)
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.Experience = strings.TrimSpace(req.Experience)

	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	exp := &Experience{
		ID:          uuid.NewString(),
		Role:        req.Role,
		CompanyName: req.CompanyName,
		Experience:  req.Experience,
		UserID:      req.UserID,
		CreatedAt:   s.now().Truncate(time.Millisecond),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interview_experiences (id, role, company_name, experience, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.Role, exp.CompanyName, exp.Experience, exp.UserID, exp.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, oops.
			In("community").
			With("user_id", req.UserID).
			Wrapf(err, "failed to insert experience")
	}

	return exp, nil
}

// List returns every experience, newest first, with the author's display name when known.
func (s *Service) List(ctx context.Context) ([]Experience, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.role, e.company_name, e.experience, e.user_id, e.created_at, p.name
		FROM interview_experiences e
		LEFT JOIN profiles p ON p.id = e.user_id
		ORDER BY e.created_at DESC, e.rowid DESC`)
	if err != nil {
		return nil, oops.In("community").Wrapf(err, "failed to query experiences")
	}
	defer rows.Close()

	result := make([]Experience, 0)

	for rows.Next() {
		var (
			exp       Experience
			createdAt int64
			author    sql.NullString
		)

		if err = rows.Scan(&exp.ID, &exp.Role, &exp.CompanyName, &exp.Experience, &exp.UserID, &createdAt, &author); err != nil {
			return nil, oops.In("community").Wrapf(err, "failed to scan experience")
		}

		exp.CreatedAt = time.UnixMilli(createdAt)
		if author.Valid {
			exp.AuthorName = &author.String
		}

		result = append(result, exp)
	}

	if err = rows.Err(); err != nil {
		return nil, oops.In("community").Wrapf(err, "failed to iterate experiences")
	}

	return result, nil
}
