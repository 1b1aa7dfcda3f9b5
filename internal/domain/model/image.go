package model

import "time"

// Image — метаданные изображения галереи.
// Хранится в таблице images, сам файл лежит в объектном хранилище.
type Image struct {
	// ID — суррогатный ключ
	ID int64
	// Filename — сгенерированное уникальное имя (uuid + расширение)
	Filename string
	// ObjectKey — полный ключ объекта в бакете (колонка r2_key)
	ObjectKey string
	// URL — публичный адрес изображения
	URL string
	// AltText — альтернативный текст (опционально)
	AltText *string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// IsActive — показывать ли изображение в публичной галерее
	IsActive bool
}

// Alt возвращает альтернативный текст или пустую строку.
func (i *Image) Alt() string {
	if i.AltText == nil {
		return ""
	}
	return *i.AltText
}
