package inventory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
)

// LoadSeed reads a JSON array of products:
// [{"id":"P1","name":"Mug","price":"10.00","stock":5}]
func LoadSeed(path string) ([]orders.Product, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var ps []orders.Product
	if err := json.Unmarshal(b, &ps); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for _, p := range ps {
		if p.ID == "" || p.Stock < 0 || !p.Price.IsPositive() {
			return nil, fmt.Errorf("%w: bad seed product %q", orders.ErrInvalidInput, p.ID)
		}
	}
	return ps, nil
}
