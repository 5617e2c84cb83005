package confloader

import "errors"

// ErrReadBytesNotSupported is returned when ReadBytes is called on the map
// provider; koanf falls back to Read for map-shaped providers.
var ErrReadBytesNotSupported = errors.New("confloader: map provider supports Read only")

// mapProvider adapts a plain map to koanf's provider contract.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
