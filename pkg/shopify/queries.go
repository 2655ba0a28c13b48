package shopify

// cartFields is shared by every cart operation. Operations must declare
// $linesFirst: Int!. Lines past the first page are fetched with CartLinesQuery.
const cartFields = `
fragment CartFields on Cart {
  id
  checkoutUrl
  cost {
    subtotalAmount {
      amount
      currencyCode
    }
  }
  lines(first: $linesFirst) {
    ...CartLinePage
  }
}
` + cartLinePage

const cartLinePage = `
fragment CartLinePage on BaseCartLineConnection {
  nodes {
    id
    quantity
    merchandise {
      ... on ProductVariant {
        id
      }
    }
  }
  pageInfo {
    hasNextPage
    endCursor
  }
}
`

// CartQuery fetches a cart by ID. Shopify answers null for unknown or expired carts.
const CartQuery = `
query cart($id: ID!, $linesFirst: Int!) {
  cart(id: $id) {
    ...CartFields
  }
}
` + cartFields

// CartLinesQuery pages through a cart's lines after the given cursor.
const CartLinesQuery = `
query cartLines($id: ID!, $linesFirst: Int!, $after: String) {
  cart(id: $id) {
    lines(first: $linesFirst, after: $after) {
      ...CartLinePage
    }
  }
}
` + cartLinePage

// CartCreateMutation opens an empty cart.
const CartCreateMutation = `
mutation cartCreate($input: CartInput, $linesFirst: Int!) {
  cartCreate(input: $input) {
    cart {
      ...CartFields
    }
    userErrors {
      field
      message
    }
  }
}
` + cartFields

// CartLinesAddMutation appends merchandise lines.
const CartLinesAddMutation = `
mutation cartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!, $linesFirst: Int!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) {
    cart {
      ...CartFields
    }
    userErrors {
      field
      message
    }
  }
}
` + cartFields

// CartLinesUpdateMutation sets line quantities; quantity 0 removes the line.
const CartLinesUpdateMutation = `
mutation cartLinesUpdate($cartId: ID!, $lines: [CartLineUpdateInput!]!, $linesFirst: Int!) {
  cartLinesUpdate(cartId: $cartId, lines: $lines) {
    cart {
      ...CartFields
    }
    userErrors {
      field
      message
    }
  }
}
` + cartFields
