package repository

import "petvet/internal/docstore"

// Collection names
const (
	ServicesCollection     = "services"
	UsersCollection        = "users"
	AppointmentsCollection = "appointments"
)

// StoreOptions returns the seed content and unique fields the repositories rely on.
func StoreOptions() docstore.Options {
	return docstore.Options{
		Seed: map[string][]docstore.Document{
			ServicesCollection: {
				{"id": "s1", "name": "Consulta Veterinária", "description": "Exame clínico completo.", "price": 80.00},
				{"id": "s2", "name": "Vacinação", "description": "Aplicação de vacinas essenciais.", "price": 50.00},
				{"id": "s3", "name": "Banho e Tosa", "description": "Serviço completo de higiene e estética.", "price": 45.00},
				{"id": "s4", "name": "Exames Laboratoriais", "description": "Análises de sangue, urina e fezes.", "price": 120.00},
			},
		},
		Unique: map[string][]string{
			UsersCollection: {"email"},
		},
	}
}

// encode converts a model into a document, leaving out an empty identifier so the
// store assigns one.
func encode(v any) (docstore.Document, error) {
	doc, err := docstore.Encode(v)
	if err != nil {
		return nil, err
	}
	if doc.ID() == "" {
		delete(doc, docstore.IDField)
	}
	return doc, nil
}
