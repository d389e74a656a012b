package models

import "errors"

var (
	// ErrArticleNotFound 文章不存在错误
	ErrArticleNotFound = errors.New("article not found")

	// ErrInvalidArticleStatus 文章当前状态不允许该操作
	ErrInvalidArticleStatus = errors.New("invalid article status")

	// ErrRevisionNotFound 修订版本不存在
	ErrRevisionNotFound = errors.New("revision not found")
)
