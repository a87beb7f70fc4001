package books

// The reducers below apply an acknowledged service result to local state.
// They never mutate their inputs.

// RemoveBook returns list without the record whose id matches.
func RemoveBook(list []Book, id string) []Book {
	remaining := make([]Book, 0, len(list))
	for _, book := range list {
		if book.ID == id {
			continue
		}
		remaining = append(remaining, book)
	}
	return remaining
}

// ReplaceBook returns list with the record sharing updated's id replaced.
func ReplaceBook(list []Book, updated Book) []Book {
	replaced := make([]Book, len(list))
	for i, book := range list {
		if book.ID == updated.ID {
			replaced[i] = updated
			continue
		}
		replaced[i] = book
	}
	return replaced
}

// AppendComment returns a copy of book with comment appended.
func AppendComment(book Book, comment Comment) Book {
	comments := make([]Comment, 0, len(book.Comments)+1)
	comments = append(comments, book.Comments...)
	comments = append(comments, comment)
	book.Comments = comments
	return book
}
