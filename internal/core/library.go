package core

import (
	"context"

	"example.com/liftlog/internal/domain"
)

// CreateAccount creates the installation account.
func (e *Engine) CreateAccount(ctx context.Context, displayName string) (domain.Account, error) {
	return mutate(ctx, e, "create_account", func() (domain.Account, error) {
		return e.store.CreateAccount(displayName)
	})
}

// UpdateAccount renames the account.
func (e *Engine) UpdateAccount(ctx context.Context, displayName string) (domain.Account, error) {
	return mutate(ctx, e, "update_account", func() (domain.Account, error) {
		return e.store.UpdateAccount(displayName)
	})
}

// DeleteAccount removes the account record.
func (e *Engine) DeleteAccount(ctx context.Context) error {
	_, err := mutate(ctx, e, "delete_account", func() (struct{}, error) {
		return struct{}{}, e.store.DeleteAccount()
	})
	return err
}

// Account returns the account, if one exists.
func (e *Engine) Account(ctx context.Context) (domain.Account, bool, error) {
	type found struct {
		account domain.Account
		ok      bool
	}
	r, err := query(ctx, e, "account", func() found {
		a, ok := e.store.Account()
		return found{a, ok}
	})
	return r.account, r.ok, err
}

func (e *Engine) CreateExercise(ctx context.Context, in domain.ExerciseInput) (domain.Exercise, error) {
	return mutate(ctx, e, "create_exercise", func() (domain.Exercise, error) {
		return e.store.CreateExercise(in)
	})
}

func (e *Engine) UpdateExercise(ctx context.Context, id string, in domain.ExerciseInput) (domain.Exercise, error) {
	return mutate(ctx, e, "update_exercise", func() (domain.Exercise, error) {
		return e.store.UpdateExercise(id, in, e.controller.Snapshot())
	})
}

// DeleteExercise removes an exercise unless a set, the draft or a template
// still references it.
func (e *Engine) DeleteExercise(ctx context.Context, id string) error {
	_, err := mutate(ctx, e, "delete_exercise", func() (struct{}, error) {
		return struct{}{}, e.store.DeleteExercise(id, e.controller.Snapshot())
	})
	return err
}

func (e *Engine) Exercise(ctx context.Context, id string) (domain.Exercise, error) {
	val, _, err := call(ctx, e, "exercise", func() (domain.Exercise, bool, error) {
		ex, err := e.store.Exercise(id)
		return ex, false, err
	})
	return val, err
}

func (e *Engine) Exercises(ctx context.Context) ([]domain.Exercise, error) {
	return query(ctx, e, "exercises", e.store.Exercises)
}

func (e *Engine) CreateFolder(ctx context.Context, name string) (domain.Folder, error) {
	return mutate(ctx, e, "create_folder", func() (domain.Folder, error) {
		return e.store.CreateFolder(name)
	})
}

func (e *Engine) RenameFolder(ctx context.Context, id, name string) (domain.Folder, error) {
	return mutate(ctx, e, "rename_folder", func() (domain.Folder, error) {
		return e.store.RenameFolder(id, name)
	})
}

// DeleteFolder removes a folder; its templates become unassigned.
func (e *Engine) DeleteFolder(ctx context.Context, id string) error {
	_, err := mutate(ctx, e, "delete_folder", func() (struct{}, error) {
		return struct{}{}, e.store.DeleteFolder(id)
	})
	return err
}

// AssignTemplate moves a template into a folder.
func (e *Engine) AssignTemplate(ctx context.Context, folderID, templateID string) (domain.Folder, error) {
	return mutate(ctx, e, "assign_template", func() (domain.Folder, error) {
		return e.store.AssignTemplate(folderID, templateID)
	})
}

func (e *Engine) UnassignTemplate(ctx context.Context, templateID string) error {
	_, err := mutate(ctx, e, "unassign_template", func() (struct{}, error) {
		return struct{}{}, e.store.UnassignTemplate(templateID)
	})
	return err
}

func (e *Engine) Folders(ctx context.Context) ([]domain.Folder, error) {
	return query(ctx, e, "folders", e.store.Folders)
}

func (e *Engine) CreateTemplate(ctx context.Context, in domain.TemplateInput) (domain.Template, error) {
	return mutate(ctx, e, "create_template", func() (domain.Template, error) {
		return e.store.CreateTemplate(in)
	})
}

func (e *Engine) UpdateTemplate(ctx context.Context, id string, in domain.TemplateInput) (domain.Template, error) {
	return mutate(ctx, e, "update_template", func() (domain.Template, error) {
		return e.store.UpdateTemplate(id, in)
	})
}

// DeleteTemplate removes a template and its folder membership.
func (e *Engine) DeleteTemplate(ctx context.Context, id string) error {
	_, err := mutate(ctx, e, "delete_template", func() (struct{}, error) {
		return struct{}{}, e.store.DeleteTemplate(id)
	})
	return err
}

func (e *Engine) Template(ctx context.Context, id string) (domain.Template, error) {
	val, _, err := call(ctx, e, "template", func() (domain.Template, bool, error) {
		t, err := e.store.Template(id)
		return t, false, err
	})
	return val, err
}

func (e *Engine) Templates(ctx context.Context) ([]domain.Template, error) {
	return query(ctx, e, "templates", e.store.Templates)
}
