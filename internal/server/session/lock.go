package session

import "sync"

// keyedMutex выдает мьютекс на строковый ключ (сессия или ресурс).
// Это точка сериализации read-modify-write над счетчиками одной сессии
// и порядка append в журнал; разные ключи не блокируют друг друга.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		locks: make(map[string]*lockEntry),
	}
}

// Lock захватывает мьютекс ключа и возвращает функцию освобождения.
// Записи со счетчиком ссылок удаляются, когда последний держатель ушел,
// чтобы карта не росла бесконечно.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
