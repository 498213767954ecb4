// internal/service/order/application/policy.go
package application

import (
	"context"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
	"ordersystem/internal/service/order/domain"
)

// LinePolicy 用一条 CEL 表达式决定订单行是否允许下单，例如
//
//	quantity <= 100 && !(product_id in [13, 42])
//
// 可用变量：product_id (int)、quantity (int)、owner_email (string)。
type LinePolicy struct {
	expr    string
	program cel.Program
}

// NewLinePolicy 编译表达式，表达式必须返回 bool
func NewLinePolicy(expr string) (*LinePolicy, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("line policy expression is empty")
	}

	env, err := cel.NewEnv(
		cel.Variable("product_id", cel.IntType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("owner_email", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile line policy %q", expr)
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, errors.Errorf("line policy %q must evaluate to bool, got %v", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "build cel program")
	}
	return &LinePolicy{expr: expr, program: prg}, nil
}

// Check 实现 saga.LineChecker，被拒绝时返回 ErrLineRejected
func (p *LinePolicy) Check(ctx context.Context, ownerEmail string, line domain.RequestedLine) error {
	out, _, err := p.program.ContextEval(ctx, map[string]any{
		"product_id":  line.ProductID,
		"quantity":    int64(line.Quantity),
		"owner_email": ownerEmail,
	})
	if err != nil {
		return errors.Wrapf(domain.ErrLineRejected, "product %d: evaluate policy: %v", line.ProductID, err)
	}
	allowed, ok := out.Value().(bool)
	if !ok || !allowed {
		return errors.Wrapf(domain.ErrLineRejected, "product %d quantity %d violates %q", line.ProductID, line.Quantity, p.expr)
	}
	return nil
}
