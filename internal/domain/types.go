package domain

// ID is used across domain entities.
type ID int64

// Status represents a lightweight state value.
type Status string
