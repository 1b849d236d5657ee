package repository

import "errors"

// ErrUserExists возвращается при попытке создать клиента с уже занятым email.
var (
	ErrUserExists = errors.New("an account with this email already exists")
	// ErrUserNotFound возвращается, если клиент не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrAdminExists возвращается при попытке создать администратора с уже занятым email.
	ErrAdminExists = errors.New("an admin account with this email already exists")
	// ErrAdminNotFound возвращается, если администратор не найден.
	ErrAdminNotFound = errors.New("admin not found")
	// ErrSessionNotFound возвращается, если сессия не найдена или истекла.
	ErrSessionNotFound = errors.New("session not found")
	// ErrBusinessNotFound возвращается, если заведение не найдено.
	ErrBusinessNotFound = errors.New("business not found")
	// ErrTagExists возвращается при конфликте идентификатора метки.
	ErrTagExists = errors.New("nfc tag already registered")
	// ErrPrizeNotFound возвращается, если приз не найден или принадлежит другому заведению.
	ErrPrizeNotFound = errors.New("prize not found")
	// ErrPunchCardNotFound возвращается, если у клиента нет карты в заведении.
	ErrPunchCardNotFound = errors.New("no punch card found for this business")
)
