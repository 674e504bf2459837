package dynamotest

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type env struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

// operand is an attribute reference ("tree", "#ttl") or a value placeholder (":now").
type operand string

func (o operand) resolve(item Item, e env) (types.AttributeValue, bool) {
	s := string(o)
	if strings.HasPrefix(s, ":") {
		v, ok := e.values[s]
		return v, ok
	}
	v, ok := item[e.attr(s)]
	return v, ok
}

func (e env) attr(s string) string {
	if strings.HasPrefix(s, "#") {
		if n, ok := e.names[s]; ok {
			return n
		}
	}
	return s
}

type condition interface {
	eval(item Item, e env) bool
}

type andCond struct{ l, r condition }

func (c andCond) eval(item Item, e env) bool { return c.l.eval(item, e) && c.r.eval(item, e) }

type orCond struct{ l, r condition }

func (c orCond) eval(item Item, e env) bool { return c.l.eval(item, e) || c.r.eval(item, e) }

type notCond struct{ c condition }

func (c notCond) eval(item Item, e env) bool { return !c.c.eval(item, e) }

type existsCond struct {
	path   operand
	exists bool
}

func (c existsCond) eval(item Item, e env) bool {
	_, ok := item[e.attr(string(c.path))]
	return ok == c.exists
}

type compareCond struct {
	op   string
	l, r operand
}

func (c compareCond) eval(item Item, e env) bool {
	l, lok := c.l.resolve(item, e)
	r, rok := c.r.resolve(item, e)
	if !lok || !rok {
		return false
	}
	cmp, ok := compare(l, r)
	if !ok {
		return c.op == "<>"
	}
	switch c.op {
	case "=":
		return cmp == 0
	case "<>":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// compare orders two scalars of the same type.
func compare(l, r types.AttributeValue) (int, bool) {
	switch lv := l.(type) {
	case *types.AttributeValueMemberS:
		rv, ok := r.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(lv.Value, rv.Value), true
	case *types.AttributeValueMemberN:
		rv, ok := r.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		a, aok := new(big.Float).SetString(lv.Value)
		b, bok := new(big.Float).SetString(rv.Value)
		if !aok || !bok {
			return 0, false
		}
		return a.Cmp(b), true
	case *types.AttributeValueMemberBOOL:
		rv, ok := r.(*types.AttributeValueMemberBOOL)
		if !ok || lv.Value != rv.Value {
			return 1, ok
		}
		return 0, true
	}
	return 0, false
}

// scalar renders a key attribute for indexing.
func scalar(v types.AttributeValue) string {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		return "S:" + tv.Value
	case *types.AttributeValueMemberN:
		return "N:" + tv.Value
	case *types.AttributeValueMemberB:
		return fmt.Sprintf("B:%x", tv.Value)
	}
	return fmt.Sprintf("?:%v", v)
}

func tokenize(s string) ([]string, error) {
	var toks []string
	for i := 0; i < len(s); {
		ch := rune(s[i])
		switch {
		case unicode.IsSpace(ch):
			i++
		case strings.ContainsRune("(),+", ch):
			toks = append(toks, string(ch))
			i++
		case ch == '<' || ch == '>' || ch == '=':
			if i+1 < len(s) && (s[i+1] == '=' || (ch == '<' && s[i+1] == '>')) {
				toks = append(toks, s[i:i+2])
				i += 2
				continue
			}
			toks = append(toks, string(ch))
			i++
		case ch == '#' || ch == ':' || ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch):
			j := i + 1
			for j < len(s) && (s[j] == '_' || s[j] == '.' || unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j]))) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			return nil, fmt.Errorf("dynamotest: unexpected %q in %q", ch, s)
		}
	}
	return toks, nil
}

type parser struct {
	toks []string
	pos  int
	src  string
}

func (p *parser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(tok string) error {
	if got := p.next(); got != tok {
		return fmt.Errorf("dynamotest: expected %q, got %q in %q", tok, got, p.src)
	}
	return nil
}

func parseCondition(s string) (condition, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: s}
	c, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("dynamotest: trailing %q in %q", p.peek(), s)
	}
	return c, nil
}

func (p *parser) or() (condition, error) {
	l, err := p.and()
	if err != nil {
		return nil, err
	}
	for strings.EqualFold(p.peek(), "OR") {
		p.next()
		r, err := p.and()
		if err != nil {
			return nil, err
		}
		l = orCond{l, r}
	}
	return l, nil
}

func (p *parser) and() (condition, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for strings.EqualFold(p.peek(), "AND") {
		p.next()
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = andCond{l, r}
	}
	return l, nil
}

func (p *parser) unary() (condition, error) {
	tok := p.next()
	switch {
	case tok == "(":
		c, err := p.or()
		if err != nil {
			return nil, err
		}
		return c, p.expect(")")
	case strings.EqualFold(tok, "NOT"):
		c, err := p.unary()
		if err != nil {
			return nil, err
		}
		return notCond{c}, nil
	case tok == "attribute_exists" || tok == "attribute_not_exists":
		if err := p.expect("("); err != nil {
			return nil, err
		}
		path := p.next()
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return existsCond{path: operand(path), exists: tok == "attribute_exists"}, nil
	case tok == "":
		return nil, fmt.Errorf("dynamotest: unexpected end of %q", p.src)
	}

	op := p.next()
	switch op {
	case "=", "<>", "<", "<=", ">", ">=":
	default:
		return nil, fmt.Errorf("dynamotest: unsupported operator %q in %q", op, p.src)
	}
	r := p.next()
	if r == "" {
		return nil, fmt.Errorf("dynamotest: unexpected end of %q", p.src)
	}
	return compareCond{op: op, l: operand(tok), r: operand(r)}, nil
}

// applyUpdate evaluates a "SET a = b, c = c + :d" expression against old,
// which may be nil, and returns the new item.
func applyUpdate(expr string, old, key Item, e env) (Item, error) {
	out := clone(old)
	if out == nil {
		out = clone(key)
	}
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(strings.ToUpper(expr), "SET ") {
		return nil, fmt.Errorf("dynamotest: only SET updates are supported: %q", expr)
	}

	for _, clause := range strings.Split(expr[4:], ",") {
		toks, err := tokenize(clause)
		if err != nil {
			return nil, err
		}
		if len(toks) < 3 || toks[1] != "=" {
			return nil, fmt.Errorf("dynamotest: bad SET clause %q", clause)
		}
		target := e.attr(toks[0])
		l, ok := operand(toks[2]).resolve(old, e)
		if !ok {
			return nil, fmt.Errorf("dynamotest: unresolved %q in %q", toks[2], clause)
		}
		switch len(toks) {
		case 3:
			out[target] = l
		case 5:
			if toks[3] != "+" {
				return nil, fmt.Errorf("dynamotest: bad SET clause %q", clause)
			}
			r, ok := operand(toks[4]).resolve(old, e)
			if !ok {
				return nil, fmt.Errorf("dynamotest: unresolved %q in %q", toks[4], clause)
			}
			sum, err := add(l, r)
			if err != nil {
				return nil, err
			}
			out[target] = sum
		default:
			return nil, fmt.Errorf("dynamotest: bad SET clause %q", clause)
		}
	}
	return out, nil
}

func add(l, r types.AttributeValue) (types.AttributeValue, error) {
	ln, lok := l.(*types.AttributeValueMemberN)
	rn, rok := r.(*types.AttributeValueMemberN)
	if !lok || !rok {
		return nil, fmt.Errorf("dynamotest: + needs numbers")
	}
	a, aok := new(big.Float).SetString(ln.Value)
	b, bok := new(big.Float).SetString(rn.Value)
	if !aok || !bok {
		return nil, fmt.Errorf("dynamotest: bad numbers %q + %q", ln.Value, rn.Value)
	}
	return &types.AttributeValueMemberN{Value: new(big.Float).Add(a, b).Text('f', -1)}, nil
}
