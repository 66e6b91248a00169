package models

// All lists every model owned by this service, parents first.
func All() []any {
	return []any{
		&Order{},
		&CustomerOrder{},
		&LoyaltyLedgerEvent{},
		&MenuItem{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
