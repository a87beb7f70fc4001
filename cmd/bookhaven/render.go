package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/session"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/views"
)

const commentTimeLayout = "2006-01-02 15:04"

func formatRating(rating float64) string {
	return strconv.FormatFloat(rating, 'f', -1, 64)
}

func printFeedback(w io.Writer, feedback *views.Feedback) {
	if feedback == nil {
		return
	}
	fmt.Fprintf(w, "[%s] %s\n", feedback.Kind, feedback.Text)
}

func printBookLine(w io.Writer, book books.Book, marker string) {
	fmt.Fprintf(w, "%s %s  %q by %s  (%s, %s/5)\n", marker, book.ID, book.Title, book.Author, book.Genre, formatRating(book.Rating.Float64()))
}

func printCards(w io.Writer, cards []views.Card) {
	if len(cards) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}
	for _, card := range cards {
		marker := " "
		if card.IsOwner {
			marker = "*"
		}
		printBookLine(w, card.Book, marker)
	}
}

func printHome(w io.Writer, snapshot views.HomeSnapshot) {
	fmt.Fprintln(w, "Latest books")
	if len(snapshot.Latest) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}
	for _, book := range snapshot.Latest {
		printBookLine(w, book, " ")
	}
}

func printList(w io.Writer, snapshot views.ListSnapshot) {
	printFeedback(w, snapshot.Feedback)
	if snapshot.Sort != books.SortNone {
		fmt.Fprintf(w, "Sorted by rating: %s\n", snapshot.Sort)
	}
	printCards(w, snapshot.Cards)
}

func printMyBooks(w io.Writer, snapshot views.MyBooksSnapshot) {
	if snapshot.AccessDenied {
		fmt.Fprintln(w, "Please login to see your books.")
		return
	}
	printFeedback(w, snapshot.Feedback)
	printCards(w, snapshot.Cards)
}

func printDetail(w io.Writer, snapshot views.DetailSnapshot) {
	printFeedback(w, snapshot.Feedback)
	if snapshot.NotFound {
		fmt.Fprintln(w, "Book not found.")
		return
	}
	book := snapshot.Book
	if book == nil {
		return
	}
	fmt.Fprintf(w, "%s\n", book.Title)
	fmt.Fprintf(w, "  Author:  %s\n", book.Author)
	fmt.Fprintf(w, "  Genre:   %s\n", book.Genre)
	fmt.Fprintf(w, "  Rating:  %s/5\n", formatRating(book.Rating.Float64()))
	fmt.Fprintf(w, "  Cover:   %s\n", book.CoverImage)
	fmt.Fprintf(w, "  Added by %s <%s>\n", book.OwnerName, book.OwnerEmail)
	if snapshot.CanEdit {
		fmt.Fprintf(w, "  Edit:    %s\n", views.RouteUpdateBook(book.ID))
	}
	fmt.Fprintf(w, "\n%s\n", book.Summary)
	fmt.Fprintf(w, "\nComments (%d)\n", len(book.Comments))
	for _, comment := range book.Comments {
		fmt.Fprintf(w, "  %s  %s: %s\n", formatCommentTime(comment.CreatedAt), comment.AuthorName, comment.Text)
	}
}

func formatCommentTime(createdAt time.Time) string {
	if createdAt.IsZero() {
		return "-"
	}
	return createdAt.Local().Format(commentTimeLayout)
}

func printForm(w io.Writer, snapshot views.FormSnapshot) {
	printFeedback(w, snapshot.Feedback)
	if snapshot.Book != nil && snapshot.Phase == views.PhaseSucceeded {
		printBookLine(w, *snapshot.Book, " ")
	}
}

func printAuth(w io.Writer, snapshot views.AuthSnapshot) {
	printFeedback(w, snapshot.Feedback)
}

func printPrincipal(w io.Writer, state session.State) {
	if !state.SignedIn() {
		fmt.Fprintln(w, "Not signed in.")
		return
	}
	principal := state.Principal
	name := principal.DisplayName
	if name == "" {
		name = principal.Email
	}
	fmt.Fprintf(w, "Signed in as %s <%s> (%s)\n", name, principal.Email, principal.ID)
}
