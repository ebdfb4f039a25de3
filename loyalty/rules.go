/*
rules.go - Accrual rule evaluation

PURPOSE:
  Decides if and how many points each of a program's rules earns on an
  order. This is the first phase of every evaluation: all accrual for
  all candidate programs runs before any redemption.

ACCRUAL FORMULA:
  amount = reward_point_amount scaled by the mode's basis:
    money -> matching line subtotal
    unit  -> matching quantity
    order -> 1 (flat, once per order)

SPLIT ACCRUAL:
  With Split set, accrual is computed and reported per matching line
  (one Accrual per line, carrying the line index and product id).
  Gift-card issuance relies on this: buying two gift cards
  in one order must produce two attributable point grants, not one
  lump sum.

VALIDATION:
  EvaluateRules assumes the program passed Validate() at load time.
  Unknown point modes cannot reach this code path.

SEE ALSO:
  - program.go: Rule definition and load-time validation
  - engine.go: Calls EvaluateRules for every candidate program
*/
package loyalty

import (
	"github.com/shopspring/decimal"
)

// EvaluateRules evaluates every rule of a program against the order
// and returns the points earned. The returned accruals carry no
// account attribution; the engine assigns AccountID before reporting
// them.
//
// A rule with MinimumQuantity set does not fire unless the summed
// matching quantity meets the threshold. A rule earning zero points
// produces no accrual.
func EvaluateRules(order Order, program *Program) []Accrual {
	var accruals []Accrual

	for _, rule := range program.Rules {
		matched := matchingLines(order, rule)
		if len(matched) == 0 {
			continue
		}

		if rule.MinimumQuantity.IsPositive() {
			qty := decimal.Zero
			for _, i := range matched {
				qty = qty.Add(order.Lines[i].Quantity)
			}
			if qty.LessThan(rule.MinimumQuantity) {
				continue
			}
		}

		switch rule.PointMode {
		case PointsPerOrder:
			// Flat accrual, once per order. Split has no effect: there
			// is nothing to attribute to individual lines.
			if rule.PointAmount.IsPositive() {
				accruals = append(accruals, Accrual{
					ProgramID: program.ID,
					RuleID:    rule.ID,
					LineIndex: -1,
					Points:    rule.PointAmount,
				})
			}

		case PointsPerMoney, PointsPerUnit:
			if rule.Split {
				for _, i := range matched {
					points := rule.PointAmount.Mul(ruleBasis(rule.PointMode, order.Lines[i]))
					if !points.IsPositive() {
						continue
					}
					accruals = append(accruals, Accrual{
						ProgramID: program.ID,
						RuleID:    rule.ID,
						LineIndex: i,
						ProductID: order.Lines[i].ProductID,
						Points:    points,
					})
				}
			} else {
				basis := decimal.Zero
				for _, i := range matched {
					basis = basis.Add(ruleBasis(rule.PointMode, order.Lines[i]))
				}
				points := rule.PointAmount.Mul(basis)
				if points.IsPositive() {
					accruals = append(accruals, Accrual{
						ProgramID: program.ID,
						RuleID:    rule.ID,
						LineIndex: -1,
						Points:    points,
					})
				}
			}
		}
	}

	return accruals
}

// matchingLines returns the indexes of order lines that count toward
// a rule. An unset product filter matches every line.
func matchingLines(order Order, rule Rule) []int {
	var matched []int
	for i, line := range order.Lines {
		if rule.matches(line) {
			matched = append(matched, i)
		}
	}
	return matched
}

// ruleBasis returns the per-line accrual basis for a mode.
func ruleBasis(mode PointMode, line OrderLine) decimal.Decimal {
	if mode == PointsPerMoney {
		return line.Subtotal()
	}
	return line.Quantity
}
