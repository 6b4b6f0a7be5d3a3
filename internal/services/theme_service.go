// internal/services/theme_service.go
package services

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/utils"
)

// ThemeService 管理自定义主题的sqlite持久化与主题解析
type ThemeService struct {
	db *sql.DB
}

// NewThemeService 打开（必要时创建）主题数据库
func NewThemeService(dbPath string) (*ThemeService, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open theme database: %w", err)
	}

	createTable := `
	CREATE TABLE IF NOT EXISTS custom_themes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		primary_color TEXT NOT NULL,
		secondary_color TEXT NOT NULL,
		background_color TEXT NOT NULL,
		text_color TEXT NOT NULL,
		accent_color TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create themes table: %w", err)
	}

	return &ThemeService{db: db}, nil
}

// Close 关闭数据库连接
func (s *ThemeService) Close() error {
	return s.db.Close()
}

// ListCustomThemes 列出所有自定义主题
func (s *ThemeService) ListCustomThemes() ([]models.CustomTheme, error) {
	rows, err := s.db.Query(`
		SELECT id, name, primary_color, secondary_color, background_color, text_color, accent_color
		FROM custom_themes ORDER BY created_at`)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to query custom themes", err)
	}
	defer rows.Close()

	var themes []models.CustomTheme
	for rows.Next() {
		var t models.CustomTheme
		if err := rows.Scan(&t.ID, &t.Name,
			&t.Colors.Primary, &t.Colors.Secondary, &t.Colors.Background,
			&t.Colors.Text, &t.Colors.Accent); err != nil {
			return nil, apperrors.NewPersistenceError("failed to scan custom theme row", err)
		}
		themes = append(themes, t)
	}
	return themes, rows.Err()
}

// GetCustomTheme 按id获取自定义主题
func (s *ThemeService) GetCustomTheme(id string) (*models.CustomTheme, error) {
	var t models.CustomTheme
	err := s.db.QueryRow(`
		SELECT id, name, primary_color, secondary_color, background_color, text_color, accent_color
		FROM custom_themes WHERE id = ?`, id).Scan(
		&t.ID, &t.Name,
		&t.Colors.Primary, &t.Colors.Secondary, &t.Colors.Background,
		&t.Colors.Text, &t.Colors.Accent)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("custom theme not found: %s", id), nil)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to load custom theme", err)
	}
	return &t, nil
}

// SaveCustomTheme 保存（插入或更新）自定义主题
func (s *ThemeService) SaveCustomTheme(theme *models.CustomTheme) error {
	if strings.TrimSpace(theme.ID) == "" {
		return apperrors.NewValidationError("theme id is required", nil)
	}
	if models.IsBuiltinTheme(theme.ID) {
		return apperrors.NewValidationError(fmt.Sprintf("theme id %s collides with a built-in theme", theme.ID), nil)
	}
	if theme.Name == "" {
		theme.Name = theme.ID
	}

	_, err := s.db.Exec(`
		INSERT INTO custom_themes (id, name, primary_color, secondary_color, background_color, text_color, accent_color)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			primary_color = excluded.primary_color,
			secondary_color = excluded.secondary_color,
			background_color = excluded.background_color,
			text_color = excluded.text_color,
			accent_color = excluded.accent_color`,
		theme.ID, theme.Name,
		theme.Colors.Primary, theme.Colors.Secondary, theme.Colors.Background,
		theme.Colors.Text, theme.Colors.Accent)
	if err != nil {
		return apperrors.NewPersistenceError(fmt.Sprintf("failed to save custom theme %s", theme.ID), err)
	}
	return nil
}

// DeleteCustomTheme 删除自定义主题
func (s *ThemeService) DeleteCustomTheme(id string) error {
	result, err := s.db.Exec(`DELETE FROM custom_themes WHERE id = ?`, id)
	if err != nil {
		return apperrors.NewPersistenceError(fmt.Sprintf("failed to delete custom theme %s", id), err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("custom theme not found: %s", id), nil)
	}
	return nil
}

// AdoptSharedTheme 把随分享载荷携带的自定义主题并入主题库
// 同id已存在时保留现有定义；持久化失败只记录日志，不影响解码流程。
func (s *ThemeService) AdoptSharedTheme(theme *models.CustomTheme) {
	if theme == nil || models.IsBuiltinTheme(theme.ID) {
		return
	}
	if _, err := s.GetCustomTheme(theme.ID); err == nil {
		return
	}
	if err := s.SaveCustomTheme(theme); err != nil {
		utils.GetLogger().Warnf("Failed to persist shared custom theme %s: %v", theme.ID, err)
	}
}

// Resolve 把主题id解析为调色板
// 既不是内置也不是已存储的自定义主题时回退到default。
func (s *ThemeService) Resolve(id string) models.ThemeColors {
	if colors, ok := models.BuiltinThemes[id]; ok {
		return colors
	}

	if theme, err := s.GetCustomTheme(id); err == nil {
		return theme.Colors
	} else if !apperrors.IsNotFoundError(err) {
		utils.GetLogger().Warnf("Theme lookup failed for %s, falling back to default: %v", id, err)
	}

	return models.BuiltinThemes[models.DefaultTheme]
}

// ThemeExists 检查主题id是否可解析（内置或自定义）
func (s *ThemeService) ThemeExists(id string) bool {
	if models.IsBuiltinTheme(id) {
		return true
	}
	_, err := s.GetCustomTheme(id)
	return err == nil
}
