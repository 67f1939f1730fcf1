package datastores

import "strings"

const (
	opListContacts  = "GetContactListWithCount"
	opGetContact    = "GetContactById"
	opInsertContact = "AddContactWithPhones"
	opUpdateContact = "EditContactById"
	opUpdatePhone   = "EditPhoneNumber"
	opDeleteContact = "DeleteContact"
)

const listContactsQuery = `query GetContactListWithCount(
  $limit: Int
  $offset: Int
  $order_by: [contact_order_by!]
  $where: contact_bool_exp
) {
  contact(limit: $limit, offset: $offset, order_by: $order_by, where: $where) {
    created_at
    first_name
    id
    last_name
    phones {
      number
    }
  }
  contact_aggregate(where: $where) {
    aggregate {
      count
    }
  }
}`

const getContactQuery = `query GetContactById($id: Int!) {
  contact_by_pk(id: $id) {
    id
    first_name
    last_name
    created_at
    phones {
      number
    }
  }
}`

const insertContactMutation = `mutation AddContactWithPhones(
  $first_name: String!
  $last_name: String!
  $phones: [phone_insert_input!]!
) {
  insert_contact(
    objects: {
      first_name: $first_name
      last_name: $last_name
      phones: { data: $phones }
    }
  ) {
    returning {
      first_name
      last_name
      id
      created_at
      phones {
        number
      }
    }
  }
}`

const updateContactMutation = `mutation EditContactById($id: Int!, $_set: contact_set_input) {
  update_contact_by_pk(pk_columns: { id: $id }, _set: $_set) {
    id
    first_name
    last_name
    created_at
    phones {
      number
    }
  }
}`

const updatePhoneMutation = `mutation EditPhoneNumber(
  $pk_columns: phone_pk_columns_input!
  $new_phone_number: String!
) {
  update_phone_by_pk(pk_columns: $pk_columns, _set: { number: $new_phone_number }) {
    contact {
      id
      last_name
      first_name
      created_at
      phones {
        number
      }
    }
  }
}`

const deleteContactMutation = `mutation DeleteContact($id: Int!) {
  delete_contact_by_pk(id: $id) {
    first_name
    last_name
    id
  }
}`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereFilter returns the contact_bool_exp for a search term, or nil when
// the term is empty so that the query runs unfiltered.
func whereFilter(search string) any {
	if search == "" {
		return nil
	}
	return map[string]any{
		"first_name": map[string]any{"_ilike": "%" + likeEscaper.Replace(search) + "%"},
	}
}
