package storage

import (
	"context"
	"fmt"

	"github.com/makerspace/makeradmin/internal/models"
)

const productColumns = `p.id, p.category_id, p.name, p.description, p.unit, p.price,
	p.smallest_multiple, p.display_order, COALESCE(p.image, ''), p.created_at, p.deleted_at`

func scanProduct(row rowScanner) (models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Unit, &p.Price,
		&p.SmallestMultiple, &p.DisplayOrder, &p.Image, &p.CreatedAt, &p.DeletedAt)
	return p, err
}

// ProductCategories returns the live catalog: categories in display order, each with its
// live products and their actions.
func (s *Storage) ProductCategories(ctx context.Context) ([]models.Category, error) {
	const op = "storage.ProductCategories"

	rows, err := s.conn().QueryContext(ctx,
		`SELECT id, name, display_order FROM product_categories
		 WHERE deleted_at IS NULL ORDER BY display_order, id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	categories := make([]models.Category, 0)
	index := make(map[int]int)
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.DisplayOrder); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		c.Items = make([]models.Product, 0)
		index[c.ID] = len(categories)
		categories = append(categories, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	products, err := s.listProducts(ctx, `p.deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, p := range products {
		if i, ok := index[p.CategoryID]; ok {
			categories[i].Items = append(categories[i].Items, p)
		}
	}
	return categories, nil
}

// MembershipProducts returns the live products that grant membership days, the only
// products that may be bought when registering.
func (s *Storage) MembershipProducts(ctx context.Context) ([]models.Product, error) {
	const op = "storage.MembershipProducts"

	products, err := s.listProducts(ctx, `p.deleted_at IS NULL AND EXISTS (
		SELECT 1 FROM product_actions pa
		WHERE pa.product_id = p.id AND pa.deleted_at IS NULL AND pa.action = 'add_membership_days')`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return products, nil
}

// GetProduct returns a live product with its actions.
func (s *Storage) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	const op = "storage.GetProduct"

	products, err := s.listProducts(ctx, `p.deleted_at IS NULL AND p.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return &products[0], nil
}

func (s *Storage) listProducts(ctx context.Context, where string, args ...any) ([]models.Product, error) {
	rows, err := s.conn().QueryContext(ctx,
		`SELECT `+productColumns+` FROM products p WHERE `+where+` ORDER BY p.display_order, p.id`, args...)
	if err != nil {
		return nil, err
	}
	products := make([]models.Product, 0)
	index := make(map[int]int)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[p.ID] = len(products)
		products = append(products, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return products, nil
	}

	ids := make([]int, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	arows, err := s.conn().QueryContext(ctx,
		`SELECT id, product_id, action, value FROM product_actions
		 WHERE product_id = ANY($1) AND deleted_at IS NULL ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer arows.Close()
	for arows.Next() {
		var a models.ProductAction
		if err := arows.Scan(&a.ID, &a.ProductID, &a.Action, &a.Value); err != nil {
			return nil, err
		}
		i := index[a.ProductID]
		products[i].Actions = append(products[i].Actions, a)
	}
	return products, arows.Err()
}

// CreateProduct stores a product and its actions.
func (s *Storage) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	const op = "storage.CreateProduct"

	var created models.Product
	err := s.InTx(ctx, func(tx *Storage) error {
		query := `INSERT INTO products AS p (category_id, name, description, unit, price,
				      smallest_multiple, display_order, image)
				  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				  RETURNING ` + productColumns
		var err error
		created, err = scanProduct(tx.conn().QueryRowContext(ctx,
			query,
			p.CategoryID, p.Name, p.Description, p.Unit, p.Price,
			p.SmallestMultiple, p.DisplayOrder, nullString(p.Image)))
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		for _, a := range p.Actions {
			action := models.ProductAction{ProductID: created.ID, Action: a.Action, Value: a.Value}
			err = tx.conn().QueryRowContext(ctx,
				`INSERT INTO product_actions (product_id, action, value) VALUES ($1, $2, $3) RETURNING id`,
				created.ID, string(a.Action), a.Value).Scan(&action.ID)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			created.Actions = append(created.Actions, action)
		}
		return nil
	})
	if err != nil {
		return models.Product{}, err
	}
	return created, nil
}

// DeleteProduct soft deletes a product.
func (s *Storage) DeleteProduct(ctx context.Context, id int) error {
	const op = "storage.DeleteProduct"

	res, err := s.conn().ExecContext(ctx,
		`UPDATE products SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// CreateTransaction stores a pending transaction and its contents.
func (s *Storage) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	const op = "storage.CreateTransaction"

	created := t
	err := s.InTx(ctx, func(tx *Storage) error {
		err := tx.conn().QueryRowContext(ctx,
			`INSERT INTO transactions (member_id, amount, status)
			 VALUES ($1, $2, 'pending')
			 RETURNING id, status, created_at`,
			t.MemberID, t.Amount).Scan(&created.ID, &created.Status, &created.CreatedAt)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		created.Contents = make([]models.TransactionContent, 0, len(t.Contents))
		for _, c := range t.Contents {
			c.TransactionID = created.ID
			err = tx.conn().QueryRowContext(ctx,
				`INSERT INTO transaction_contents (transaction_id, product_id, count, amount)
				 VALUES ($1, $2, $3, $4) RETURNING id`,
				created.ID, c.ProductID, c.Count, c.Amount).Scan(&c.ID)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			created.Contents = append(created.Contents, c)
		}
		return nil
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return created, nil
}

// SetPaymentReference records the payment provider's id for a transaction.
func (s *Storage) SetPaymentReference(ctx context.Context, transactionID int, ref string) error {
	const op = "storage.SetPaymentReference"

	_, err := s.conn().ExecContext(ctx,
		`UPDATE transactions SET payment_reference = $2 WHERE id = $1`, transactionID, ref)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FailTransaction marks a pending transaction as failed.
func (s *Storage) FailTransaction(ctx context.Context, transactionID int) error {
	const op = "storage.FailTransaction"

	_, err := s.conn().ExecContext(ctx,
		`UPDATE transactions SET status = 'failed' WHERE id = $1 AND status = 'pending'`, transactionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CompleteTransaction marks a pending transaction as completed and creates one pending
// action per content and product action, valued at action value times count.
func (s *Storage) CompleteTransaction(ctx context.Context, transactionID int) (models.Transaction, []models.TransactionAction, error) {
	const op = "storage.CompleteTransaction"

	var (
		t       models.Transaction
		actions []models.TransactionAction
	)
	err := s.InTx(ctx, func(tx *Storage) error {
		err := tx.conn().QueryRowContext(ctx,
			`SELECT id, member_id, amount, status, COALESCE(payment_reference, ''), created_at
			 FROM transactions WHERE id = $1 FOR UPDATE`, transactionID).
			Scan(&t.ID, &t.MemberID, &t.Amount, &t.Status, &t.PaymentReference, &t.CreatedAt)
		if err != nil {
			return mapError(op, err)
		}
		if t.Status != models.TransactionPending {
			return fmt.Errorf("%s: %w", op, models.ErrTransactionNotPending)
		}
		if _, err = tx.conn().ExecContext(ctx,
			`UPDATE transactions SET status = 'completed' WHERE id = $1`, transactionID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		t.Status = models.TransactionCompleted

		rows, err := tx.conn().QueryContext(ctx,
			`INSERT INTO transaction_actions (content_id, action, value)
			 SELECT tc.id, pa.action, pa.value * tc.count
			 FROM transaction_contents tc
			 JOIN product_actions pa ON pa.product_id = tc.product_id AND pa.deleted_at IS NULL
			 WHERE tc.transaction_id = $1
			 RETURNING id, content_id, action, value, status, completed_at`, transactionID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		defer rows.Close()
		for rows.Next() {
			var a models.TransactionAction
			if err := rows.Scan(&a.ID, &a.ContentID, &a.Action, &a.Value, &a.Status, &a.CompletedAt); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			actions = append(actions, a)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return models.Transaction{}, nil, err
	}
	return t, actions, nil
}

// PendingActions lists pending transaction actions of completed transactions. A zero
// memberID lists all members; an empty action lists all actions. With onlyWithKeys set,
// only members holding a live key are included.
func (s *Storage) PendingActions(ctx context.Context, memberID int, action models.ActionName, onlyWithKeys bool) ([]models.PendingAction, error) {
	const op = "storage.PendingActions"

	query := `SELECT ta.id, ta.content_id, ta.action, ta.value, ta.status, ta.completed_at,
			      tc.id, tc.transaction_id, tc.product_id, tc.count, tc.amount,
			      t.member_id, t.created_at
			  FROM transaction_actions ta
			  JOIN transaction_contents tc ON tc.id = ta.content_id
			  JOIN transactions t ON t.id = tc.transaction_id
			  WHERE ta.status = 'pending' AND t.status = 'completed'
			    AND ($1 = 0 OR t.member_id = $1)
			    AND ($2 = '' OR ta.action = $2)
			    AND (NOT $3 OR EXISTS (
			        SELECT 1 FROM keys k WHERE k.member_id = t.member_id AND k.deleted_at IS NULL))
			  ORDER BY t.created_at, ta.id`
	rows, err := s.conn().QueryContext(ctx, query, memberID, string(action), onlyWithKeys)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	pending := make([]models.PendingAction, 0)
	for rows.Next() {
		var pa models.PendingAction
		if err := rows.Scan(&pa.Action.ID, &pa.Action.ContentID, &pa.Action.Action, &pa.Action.Value,
			&pa.Action.Status, &pa.Action.CompletedAt,
			&pa.Item.ID, &pa.Item.TransactionID, &pa.Item.ProductID, &pa.Item.Count, &pa.Item.Amount,
			&pa.MemberID, &pa.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		pa.TransactionID = pa.Item.TransactionID
		pending = append(pending, pa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pending, nil
}

// CompleteAction marks a pending transaction action as performed.
func (s *Storage) CompleteAction(ctx context.Context, actionID int) error {
	const op = "storage.CompleteAction"

	res, err := s.conn().ExecContext(ctx,
		`UPDATE transaction_actions SET status = 'completed', completed_at = NOW()
		 WHERE id = $1 AND status = 'pending'`, actionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// TransactionHistory returns a member's transactions, newest first, with their contents.
func (s *Storage) TransactionHistory(ctx context.Context, memberID int) ([]models.Transaction, error) {
	const op = "storage.TransactionHistory"

	rows, err := s.conn().QueryContext(ctx,
		`SELECT id, member_id, amount, status, COALESCE(payment_reference, ''), created_at
		 FROM transactions WHERE member_id = $1 ORDER BY created_at DESC, id DESC`, memberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	transactions := make([]models.Transaction, 0)
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.MemberID, &t.Amount, &t.Status, &t.PaymentReference, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		transactions = append(transactions, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range transactions {
		contents, err := s.transactionContents(ctx, transactions[i].ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		transactions[i].Contents = contents
	}
	return transactions, nil
}

// GetTransaction returns a transaction with its contents.
func (s *Storage) GetTransaction(ctx context.Context, id int) (*models.Transaction, error) {
	const op = "storage.GetTransaction"

	var t models.Transaction
	err := s.conn().QueryRowContext(ctx,
		`SELECT id, member_id, amount, status, COALESCE(payment_reference, ''), created_at
		 FROM transactions WHERE id = $1`, id).
		Scan(&t.ID, &t.MemberID, &t.Amount, &t.Status, &t.PaymentReference, &t.CreatedAt)
	if err != nil {
		return nil, mapError(op, err)
	}
	if t.Contents, err = s.transactionContents(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}

// transactionContents loads the lines of a transaction with their products, deleted
// products included.
func (s *Storage) transactionContents(ctx context.Context, transactionID int) ([]models.TransactionContent, error) {
	rows, err := s.conn().QueryContext(ctx,
		`SELECT tc.id, tc.transaction_id, tc.product_id, tc.count, tc.amount, `+productColumns+`
		 FROM transaction_contents tc
		 JOIN products p ON p.id = tc.product_id
		 WHERE tc.transaction_id = $1 ORDER BY tc.id`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contents := make([]models.TransactionContent, 0)
	for rows.Next() {
		var (
			c models.TransactionContent
			p models.Product
		)
		if err := rows.Scan(&c.ID, &c.TransactionID, &c.ProductID, &c.Count, &c.Amount,
			&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Unit, &p.Price,
			&p.SmallestMultiple, &p.DisplayOrder, &p.Image, &p.CreatedAt, &p.DeletedAt); err != nil {
			return nil, err
		}
		c.Product = &p
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

// CreateCategory adds a product category.
func (s *Storage) CreateCategory(ctx context.Context, name string, displayOrder int) (models.Category, error) {
	const op = "storage.CreateCategory"

	c := models.Category{Name: name, DisplayOrder: displayOrder, Items: make([]models.Product, 0)}
	err := s.conn().QueryRowContext(ctx,
		`INSERT INTO product_categories (name, display_order) VALUES ($1, $2) RETURNING id`,
		name, displayOrder).Scan(&c.ID)
	if err != nil {
		return models.Category{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}
