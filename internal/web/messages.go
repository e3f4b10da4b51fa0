package web

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/Surfinbird-star/aas2/internal/model"
)

// Flash messages travel as short codes in the redirect query string so a
// page never echoes text it did not write itself.
var successMessages = map[string]string{
	"registered":       "Регистрация завершена.",
	"cart_cleared":     "Корзина очищена.",
	"order_placed":     "Заказ оформлен и передан в обработку.",
	"doc_uploaded":     "Документ загружен.",
	"doc_deleted":      "Документ удален.",
	"status_saved":     "Статус заказа обновлен.",
	"items_saved":      "Количество товаров сохранено.",
	"product_saved":    "Товар сохранен.",
	"product_deleted":  "Товар удален.",
	"image_saved":      "Изображение загружено.",
	"category_saved":   "Категория сохранена.",
	"category_deleted": "Категория удалена.",
	"user_saved":       "Пользователь сохранен.",
}

var errorMessages = map[string]string{
	"invalid":          "Проверьте заполнение формы.",
	"not_found":        "Запись не найдена.",
	"internal":         "Внутренняя ошибка. Попробуйте позже.",
	"order_processing": "У вас уже есть заказ в обработке. Дождитесь его завершения.",
	"cart_empty":       "Корзина пуста.",
	"cart_failed":      "Не удалось обновить корзину.",
	"cart_full":        "В корзине слишком много товаров. Оформите заказ или удалите часть позиций.",
	"doc_exists":       "Документ уже загружен. Удалите его, чтобы загрузить новый.",
	"doc_invalid":      "Допустимы файлы PDF, DOC, DOCX, JPG и PNG размером до 5 МБ.",
	"transition":       "Такой переход статуса недоступен.",
	"category_in_use":  "В категории есть товары, ее нельзя удалить.",
	"image_invalid":    "Изображение должно быть в формате JPEG или PNG.",
	"self_admin":       "Нельзя снять права администратора с самого себя.",
	"email_taken":      "Этот email уже зарегистрирован.",
	"forbidden":        "Недостаточно прав.",
	"exists":           "Такая запись уже существует.",
}

// redirect sends the browser to path with an optional flash code.
func redirect(w http.ResponseWriter, r *http.Request, path, key, code string) {
	if code != "" {
		u, err := url.Parse(path)
		if err == nil {
			q := u.Query()
			q.Set(key, code)
			u.RawQuery = q.Encode()
			path = u.String()
		}
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func redirectOK(w http.ResponseWriter, r *http.Request, path, code string) {
	redirect(w, r, path, "ok", code)
}

func redirectErr(w http.ResponseWriter, r *http.Request, path, code string) {
	redirect(w, r, path, "err", code)
}

// errorCode maps a domain error to a flash code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, model.ErrOrderInProgress):
		return "order_processing"
	case errors.Is(err, model.ErrEmptyOrder):
		return "cart_empty"
	case errors.Is(err, model.ErrDocumentExists):
		return "doc_exists"
	case errors.Is(err, model.ErrInvalidTransition):
		return "transition"
	case errors.Is(err, model.ErrCategoryInUse):
		return "category_in_use"
	case errors.Is(err, model.ErrEmailTaken):
		return "email_taken"
	case errors.Is(err, model.ErrAlreadyExists):
		return "exists"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrValidation):
		return "invalid"
	default:
		return "internal"
	}
}
