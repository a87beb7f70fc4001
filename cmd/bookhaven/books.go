package main

import (
	"context"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/views"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newHomeCommand(configViper *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "home",
		Short: "Show the latest books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, configViper, func(ctx context.Context, app *clientApp) error {
				view := views.NewHomeView(app.deps)
				err := view.Load(ctx)
				printHome(app.out, view.Snapshot())
				return err
			})
		},
	}
}

func newBooksCommand(configViper *viper.Viper) *cobra.Command {
	booksCmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and manage the catalog",
	}
	booksCmd.AddCommand(
		newBooksListCommand(configViper),
		newBooksMineCommand(configViper),
		newBooksShowCommand(configViper),
		newBooksAddCommand(configViper),
		newBooksEditCommand(configViper),
		newBooksDeleteCommand(configViper),
		newBooksCommentCommand(configViper),
	)
	return booksCmd
}

func newBooksListCommand(configViper *viper.Viper) *cobra.Command {
	var sortOrder string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, configViper, func(ctx context.Context, app *clientApp) error {
				view := views.NewListView(app.deps)
				err := view.Load(ctx)
				if err == nil {
					view.Sort(books.ParseSortOrder(sortOrder))
				}
				snapshot := view.Snapshot()
				printList(app.out, snapshot)
				return outcome(err, snapshot.Feedback)
			})
		},
	}
	cmd.Flags().StringVar(&sortOrder, "sort", "", "Sort by rating (high or low)")
	return cmd
}

func newBooksMineCommand(configViper *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List the books you added",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, configViper, func(ctx context.Context, app *clientApp) error {
				view := views.NewMyBooksView(app.deps)
				err := view.Load(ctx)
				snapshot := view.Snapshot()
				printMyBooks(app.out, snapshot)
				return outcome(err, snapshot.Feedback)
			})
		},
	}
}

func newBooksShowCommand(configViper *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a book with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := books.NewBookID(args[0])
			if err != nil {
				return err
			}
			return runClient(cmd, configViper, func(ctx context.Context, app *clientApp) error {
				view := views.NewDetailView(app.deps)
				err := view.Load(ctx, id)
				snapshot := view.Snapshot()
				printDetail(app.out, snapshot)
				if err != nil && snapshot.NotFound {
					return shownError{err: err}
				}
				return outcome(err, snapshot.Feedback)
			})
		},
	}
}

// draftFlags are the editable book fields exposed as flags.
type draftFlags struct {
	title      string
	author     string
	genre      string
	rating     float64
	summary    string
	coverImage string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Book title")
	cmd.Flags().StringVar(&f.author, "author", "", "Book author")
	cmd.Flags().StringVar(&f.genre, "genre", "", "Book genre")
	cmd.Flags().Float64Var(&f.rating, "rating", books.MinRating, "Rating from 1 to 5")
	cmd.Flags().StringVar(&f.summary, "summary", "", "Short summary")
	cmd.Flags().StringVar(&f.coverImage, "cover-image", "", "Cover image URL")
}

// apply copies the flags the user set onto draft.
func (f *draftFlags) apply(cmd *cobra.Command, draft *books.Draft) {
	changed := cmd.Flags().Changed
	if changed("title") {
		draft.Title = f.title
	}
	if changed("author") {
		draft.Author = f.author
	}
	if changed("genre") {
		draft.Genre = f.genre
	}
	if changed("rating") {
		draft.Rating = f.rating
	}
	if changed("summary") {
		draft.Summary = f.summary
	}
	if changed("cover-image") {
		draft.CoverImage = f.coverImage
	}
}

func newBooksAddCommand(configViper *viper.Viper) *cobra.Command {
	var fields draftFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, configViper, func(ctx context.Context, app *clientApp) error {
				form := views.NewAddForm(app.deps)
				if err := form.Edit(func(draft *books.Draft) { fields.apply(cmd, draft) }); err != nil {
					return err
				}
				err := form.Submit(ctx)
				snapshot := form.Snapshot()
				printForm(app.out, snapshot)
				return outcome(err, snapshot.Feedback)
			})
		},
	}
	fields.register(cmd)
	return cmd
}

func newBooksEditCommand(configViper *viper.Viper) *cobra.Command {
	var fields draftFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a book you added",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := books.NewBookID(args[0])
			if err != nil {
				return err
			}
			return runClient(cmd, configViper, func(ctx context.Context, app *clientApp) error {
				form := views.NewUpdateForm(app.deps)
				if err := form.Load(ctx, id); err != nil {
					snapshot := form.Snapshot()
					printForm(app.out, snapshot)
					return outcome(err, snapshot.Feedback)
				}
				if err := form.Edit(func(draft *books.Draft) { fields.apply(cmd, draft) }); err != nil {
					return err
				}
				err := form.Submit(ctx)
				snapshot := form.Snapshot()
				printForm(app.out, snapshot)
				return outcome(err, snapshot.Feedback)
			})
		},
	}
	fields.register(cmd)
	return cmd
}

func newBooksDeleteCommand(configViper *viper.Viper) *cobra.Command {
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a book you added",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, configViper, func(ctx context.Context, app *clientApp) error {
				app.assumeYes = assumeYes
				view := views.NewListView(app.deps)
				if err := view.Load(ctx); err != nil {
					snapshot := view.Snapshot()
					printFeedback(app.out, snapshot.Feedback)
					return outcome(err, snapshot.Feedback)
				}
				deleted, err := view.Delete(ctx, args[0])
				snapshot := view.Snapshot()
				printFeedback(app.out, snapshot.Feedback)
				if err == nil && !deleted {
					app.printLine("Deletion cancelled.")
				}
				return outcome(err, snapshot.Feedback)
			})
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Delete without asking for confirmation")
	return cmd
}

func newBooksCommentCommand(configViper *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <id> <text>",
		Short: "Comment on a book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := books.NewBookID(args[0])
			if err != nil {
				return err
			}
			return runClient(cmd, configViper, func(ctx context.Context, app *clientApp) error {
				view := views.NewDetailView(app.deps)
				if err := view.Load(ctx, id); err != nil {
					snapshot := view.Snapshot()
					printDetail(app.out, snapshot)
					return shownError{err: err}
				}
				view.SetCommentDraft(args[1])
				err := view.SubmitComment(ctx)
				snapshot := view.Snapshot()
				printDetail(app.out, snapshot)
				return outcome(err, snapshot.Feedback)
			})
		},
	}
}
