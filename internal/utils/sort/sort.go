package sort

import (
	"errors"
	"fmt"
)

type Method struct {
	Name string
	Desc bool
}

func Contains[T comparable](s []T, e T) bool {
	for _, v := range s {
		if v == e {
			return true
		}
	}
	return false
}

// GetOrder builds a gorm ORDER BY clause from the requested sort methods,
// rejecting column names outside the allow list.
func GetOrder(columns []string, sorts []Method) (string, error) {
	var clause string
	for _, data := range sorts {
		if !Contains(columns, data.Name) {
			return "", errors.New("column not found")
		}
		direction := "ASC"
		if data.Desc {
			direction = "DESC"
		}
		if clause != "" {
			clause += ", "
		}
		clause += fmt.Sprintf("`%s` %s", data.Name, direction)
	}
	return clause, nil
}
