package signal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arzzra/mgcp_control/pkg/media"
)

var (
	// ErrUnknownPackage пакет сигналов не поддерживается (518)
	ErrUnknownPackage = errors.New("неизвестный пакет сигналов")
	// ErrUnknownSignal сигнал не определен в пакете (522)
	ErrUnknownSignal = errors.New("неизвестный сигнал")
	// ErrUnknownParameter параметр вне словаря сигнала (538)
	ErrUnknownParameter = errors.New("неизвестный параметр сигнала")
	// ErrBadParameter параметр известен, но значение некорректно
	ErrBadParameter = errors.New("некорректное значение параметра сигнала")
)

// Request разобранный запрос сигнала из параметра S: запроса RQNT.
// Вид на проводе: PKG/sym(k1=v1 k2=v2); значения-списки разделяются запятыми.
type Request struct {
	Package    string
	Symbol     string
	Parameters map[string]string
}

func (r Request) String() string {
	if len(r.Parameters) == 0 {
		return r.Package + "/" + r.Symbol
	}
	parts := make([]string, 0, len(r.Parameters))
	for k, v := range r.Parameters {
		parts = append(parts, k+"="+v)
	}
	return fmt.Sprintf("%s/%s(%s)", r.Package, r.Symbol, strings.Join(parts, " "))
}

// ParseRequests разбирает список запросов сигналов, разделенных запятыми
// на верхнем уровне (запятые внутри скобок относятся к значениям).
func ParseRequests(s string) ([]Request, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var requests []Request
	depth := 0
	start := 0
	flush := func(end int) error {
		item := strings.TrimSpace(s[start:end])
		if item == "" {
			return nil
		}
		req, err := parseRequest(item)
		if err != nil {
			return err
		}
		requests = append(requests, req)
		return nil
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				if err := flush(i); err != nil {
					return nil, err
				}
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("несбалансированные скобки в запросе сигналов: %q", s)
	}
	if err := flush(len(s)); err != nil {
		return nil, err
	}
	return requests, nil
}

// parseRequest разбирает одиночный запрос PKG/sym(params)
func parseRequest(s string) (Request, error) {
	name := s
	var paramList string
	if open := strings.IndexByte(s, '('); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return Request{}, fmt.Errorf("некорректный запрос сигнала: %q", s)
		}
		name = s[:open]
		paramList = s[open+1 : len(s)-1]
	}

	pkg, symbol, found := strings.Cut(strings.TrimSpace(name), "/")
	if !found || pkg == "" || symbol == "" {
		return Request{}, fmt.Errorf("некорректное имя сигнала: %q", name)
	}

	params := map[string]string{}
	for _, field := range strings.Fields(paramList) {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			return Request{}, fmt.Errorf("некорректный параметр сигнала: %q", field)
		}
		params[key] = value
	}

	return Request{Package: pkg, Symbol: symbol, Parameters: params}, nil
}

// PackageProvider создает сигналы одного пакета
type PackageProvider interface {
	PackageName() string
	// Provide создает сигнал по символу и параметрам поверх медиа ресурсов.
	// Ошибки: ErrUnknownSignal, ErrUnknownParameter, ErrBadParameter.
	Provide(symbol string, parameters map[string]string, group *media.Group) (Signal, error)
}

// Registry реестр пакетов сигналов
type Registry struct {
	providers map[string]PackageProvider
}

// NewRegistry создает реестр с указанными провайдерами
func NewRegistry(providers ...PackageProvider) *Registry {
	r := &Registry{providers: make(map[string]PackageProvider, len(providers))}
	for _, p := range providers {
		r.providers[strings.ToUpper(p.PackageName())] = p
	}
	return r
}

// Provide создает сигнал по разобранному запросу
func (r *Registry) Provide(req Request, group *media.Group) (Signal, error) {
	provider, ok := r.providers[strings.ToUpper(req.Package)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, req.Package)
	}
	return provider.Provide(req.Symbol, req.Parameters, group)
}
